// Package database - Handles all interaction with ArangoDB
package database

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/arangodb/go-driver/v2/arangodb"
	"github.com/arangodb/go-driver/v2/connection"
	"github.com/cenkalti/backoff"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/riskhub/riskhub-backend/model"
	"github.com/riskhub/riskhub-backend/util"
)

var logger = InitLogger() // setup the logger

// DBConnection is the structure that defined the database engine and collections
type DBConnection struct {
	Collections map[string]arangodb.Collection
	Database    arangodb.Database
}

// Define a struct to hold the index definition
type indexConfig struct {
	Collection string
	IdxName    string
	IdxFields  []string
	Unique     bool
	Sparse     bool
}

var initDone = false          // has the data been initialized
var dbConnection DBConnection // database connection definition

// InitLogger sets up the Zap Logger to log to the console in a human readable format
func InitLogger() *zap.Logger {
	prodConfig := zap.NewProductionConfig()
	prodConfig.Encoding = "console"
	prodConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	prodConfig.EncoderConfig.EncodeDuration = zapcore.StringDurationEncoder
	logger, _ := prodConfig.Build()
	return logger
}

func dbConnectionConfig(endpoint connection.Endpoint, dbuser string, dbpass string) connection.HttpConfiguration {
	return connection.HttpConfiguration{
		Authentication: connection.NewBasicAuth(dbuser, dbpass),
		Endpoint:       endpoint,
		ContentType:    connection.ApplicationJSON,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: true, // #nosec G402
			},
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 90 * time.Second,
			}).DialContext,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}

// InitializeDatabase is the function for connecting to the db engine, creating the database and collections
func InitializeDatabase() DBConnection {
	const initialInterval = 10 * time.Second
	const maxInterval = 2 * time.Minute

	var db arangodb.Database
	var collections map[string]arangodb.Collection
	const databaseName = "riskhub"

	ctx := context.Background()

	if initDone {
		return dbConnection
	}

	dbhost := util.GetEnvDefault("ARANGO_HOST", "localhost")
	dbport := util.GetEnvDefault("ARANGO_PORT", "8529")
	dbuser := util.GetEnvDefault("ARANGO_USER", "root")
	dbpass := util.GetEnvDefault("ARANGO_PASS", "mypassword")
	dburl := util.GetEnvDefault("ARANGO_URL", "http://"+dbhost+":"+dbport)

	var client arangodb.Client

	//
	// Database connection with backoff retry
	//

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = initialInterval
	bo.MaxInterval = maxInterval
	bo.MaxElapsedTime = 0 // Set to 0 for indefinite retries

	err := backoff.RetryNotify(func() error {
		fmt.Println("Attempting to connect to ArangoDB")
		endpoint := connection.NewRoundRobinEndpoints([]string{dburl})
		conn := connection.NewHttpConnection(dbConnectionConfig(endpoint, dbuser, dbpass))

		client = arangodb.NewClient(conn)

		versionInfo, err := client.Version(context.Background())
		if err != nil {
			return err
		}

		logger.Sugar().Infof("Database has version '%s' and license '%s'\n", versionInfo.Version, versionInfo.License)
		return nil

	}, bo, func(err error, _ time.Duration) {
		fmt.Printf("Retrying connection to ArangoDB: %v\n", err)
	})

	if err != nil {
		logger.Sugar().Fatalf("Backoff Error %v\n", err)
	}

	//
	// Database creation
	//

	exists := false
	dblist, _ := client.Databases(ctx)

	for _, dbinfo := range dblist {
		if dbinfo.Name() == databaseName {
			exists = true
			break
		}
	}

	if exists {
		var options arangodb.GetDatabaseOptions
		if db, err = client.GetDatabase(ctx, databaseName, &options); err != nil {
			logger.Sugar().Fatalf("Failed to get Database: %v", err)
		}
	} else {
		if db, err = client.CreateDatabase(ctx, databaseName, nil); err != nil {
			logger.Sugar().Fatalf("Failed to create Database: %v", err)
		}
	}

	//
	// Collection creation for document storage
	//

	collections = make(map[string]arangodb.Collection)
	// We keep "metadata" here so the collection is created; feed adapters
	// store their high-water marks in it.
	collectionNames := []string{
		"project", "component", "sbom_import", "vulnerability",
		"vex_statement", "vex_audit", "ssvc_assessment", "ssvc_history",
		"resolution_event", "snapshot", "sync_run", "eol_product", "metadata",
	}

	for _, collectionName := range collectionNames {
		var col arangodb.Collection

		exists, _ = db.CollectionExists(ctx, collectionName)
		if exists {
			var options arangodb.GetCollectionOptions
			if col, err = db.GetCollection(ctx, collectionName, &options); err != nil {
				logger.Sugar().Fatalf("Failed to use collection: %v", err)
			}
		} else {
			if col, err = db.CreateCollectionV2(ctx, collectionName, nil); err != nil {
				logger.Sugar().Fatalf("Failed to create collection: %v", err)
			}
		}

		collections[collectionName] = col
	}

	//
	// Edge collection creation
	//
	// component2vuln is the correlation result set. Modeling it as an edge
	// collection keeps ranking and suppression queries as indexed traversals
	// instead of full scans over a 400K row vulnerability corpus.

	edgeCollectionNames := []string{"component2vuln"}

	for _, edgeCollectionName := range edgeCollectionNames {
		var col arangodb.Collection

		exists, _ = db.CollectionExists(ctx, edgeCollectionName)
		if exists {
			var options arangodb.GetCollectionOptions
			if col, err = db.GetCollection(ctx, edgeCollectionName, &options); err != nil {
				logger.Sugar().Fatalf("Failed to use edge collection: %v", err)
			}
		} else {
			edgeType := arangodb.CollectionTypeEdge
			if col, err = db.CreateCollectionV2(ctx, edgeCollectionName, &arangodb.CreateCollectionPropertiesV2{
				Type: &edgeType,
			}); err != nil {
				logger.Sugar().Fatalf("Failed to create edge collection: %v", err)
			}
		}

		collections[edgeCollectionName] = col
	}

	//
	// Index creation
	//

	idxList := []indexConfig{
		// Project collection indexes for tenant scoping
		{Collection: "project", IdxName: "project_tenant", IdxFields: []string{"tenant_id"}},
		{Collection: "project", IdxName: "project_tenant_name", IdxFields: []string{"tenant_id", "name"}},

		// Component collection indexes - base_purl drives correlation joins
		{Collection: "component", IdxName: "component_project", IdxFields: []string{"project_id"}},
		{Collection: "component", IdxName: "component_import", IdxFields: []string{"import_id"}},
		{Collection: "component", IdxName: "component_base_purl", IdxFields: []string{"base_purl"}},
		{Collection: "component", IdxName: "component_ecosystem", IdxFields: []string{"ecosystem"}},

		// SBOM import collection indexes for content-hash deduplication
		{Collection: "sbom_import", IdxName: "import_contentsha", IdxFields: []string{"contentsha"}},
		{Collection: "sbom_import", IdxName: "import_project", IdxFields: []string{"project_id", "superseded"}},

		// Vulnerability collection indexes
		{Collection: "vulnerability", IdxName: "vuln_id", IdxFields: []string{"id"}, Unique: true},
		{Collection: "vulnerability", IdxName: "vuln_aliases", IdxFields: []string{"aliases[*]"}},
		{Collection: "vulnerability", IdxName: "vuln_package_purl", IdxFields: []string{"affected[*].package.purl"}},
		{Collection: "vulnerability", IdxName: "vuln_package_name", IdxFields: []string{"affected[*].package.name"}},
		{Collection: "vulnerability", IdxName: "vuln_severity_rating", IdxFields: []string{"severity_rating"}},
		{Collection: "vulnerability", IdxName: "vuln_epss_score", IdxFields: []string{"epss_score"}},
		{Collection: "vulnerability", IdxName: "vuln_kev_listed", IdxFields: []string{"kev_listed"}},

		// component2vuln edge indexes - THE MOST CRITICAL for ranking performance
		// The _from index enables O(log n) vulnerability lookups per component
		{Collection: "component2vuln", IdxName: "c2v_from", IdxFields: []string{"_from"}},
		{Collection: "component2vuln", IdxName: "c2v_to", IdxFields: []string{"_to"}},
		{Collection: "component2vuln", IdxName: "c2v_project", IdxFields: []string{"tenant_id", "project_id"}},
		{Collection: "component2vuln", IdxName: "c2v_vuln_id", IdxFields: []string{"vulnerability_id"}},
		{Collection: "component2vuln", IdxName: "c2v_retained", IdxFields: []string{"retained"}},

		// VEX statement indexes - one active statement per scope triple
		{Collection: "vex_statement", IdxName: "vex_scope", IdxFields: []string{"project_id", "vulnerability_id", "component_id"}, Unique: true},
		{Collection: "vex_statement", IdxName: "vex_project", IdxFields: []string{"tenant_id", "project_id"}},
		{Collection: "vex_audit", IdxName: "vex_audit_scope", IdxFields: []string{"project_id", "vulnerability_id"}},

		// SSVC indexes
		{Collection: "ssvc_assessment", IdxName: "ssvc_scope", IdxFields: []string{"project_id", "vulnerability_id"}, Unique: true},
		{Collection: "ssvc_assessment", IdxName: "ssvc_decision", IdxFields: []string{"decision"}},
		{Collection: "ssvc_history", IdxName: "ssvc_history_scope", IdxFields: []string{"project_id", "vulnerability_id"}},

		// Resolution event indexes for MTTR and SLO queries
		{Collection: "resolution_event", IdxName: "resolution_project", IdxFields: []string{"tenant_id", "project_id"}},
		{Collection: "resolution_event", IdxName: "resolution_vuln", IdxFields: []string{"vulnerability_id"}},
		{Collection: "resolution_event", IdxName: "resolution_open", IdxFields: []string{"resolved_at"}, Sparse: true},
		{Collection: "resolution_event", IdxName: "resolution_mttr", IdxFields: []string{"severity_rating", "resolved_at"}, Sparse: true},

		// Snapshot indexes - supports date-keyed idempotent upserts and trends
		{Collection: "snapshot", IdxName: "snapshot_scope_date", IdxFields: []string{"tenant_id", "project_id", "date"}, Unique: true},
		{Collection: "snapshot", IdxName: "snapshot_date", IdxFields: []string{"date"}},

		// Sync run indexes for per-source history
		{Collection: "sync_run", IdxName: "syncrun_source", IdxFields: []string{"source", "started_at"}},
		{Collection: "sync_run", IdxName: "syncrun_status", IdxFields: []string{"status"}},

		// EOL product indexes
		{Collection: "eol_product", IdxName: "eol_product_name", IdxFields: []string{"product"}},
		{Collection: "eol_product", IdxName: "eol_date", IdxFields: []string{"eol_date"}},
	}

	for _, idx := range idxList {
		found := false

		if indexes, err := collections[idx.Collection].Indexes(ctx); err == nil {
			for _, index := range indexes {
				if idx.IdxName == index.Name {
					found = true
					break
				}
			}
		}

		if !found {
			unique := idx.Unique
			sparse := idx.Sparse
			indexOptions := arangodb.CreatePersistentIndexOptions{
				Unique: &unique,
				Sparse: &sparse,
				Name:   idx.IdxName,
			}

			_, _, err = collections[idx.Collection].EnsurePersistentIndex(ctx, idx.IdxFields, &indexOptions)
			if err != nil {
				logger.Sugar().Fatalln("Error creating index:", err)
			} else {
				logger.Sugar().Infof("Created index: %s on %s.%v", idx.IdxName, idx.Collection, idx.IdxFields)
			}
		}
	}

	initDone = true

	dbConnection = DBConnection{
		Database:    db,
		Collections: collections,
	}

	logger.Sugar().Infof("Database initialization complete with correlation graph and lifecycle tracking indexes")

	return dbConnection
}

// FindImportByContentHash checks if an SBOM import exists for a project by content hash
func FindImportByContentHash(ctx context.Context, db arangodb.Database, projectID, contentHash string) (string, error) {
	query := `
		FOR s IN sbom_import
			FILTER s.project_id == @project AND s.contentsha == @hash
			LIMIT 1
			RETURN s._key
	`
	bindVars := map[string]interface{}{
		"project": projectID,
		"hash":    contentHash,
	}

	cursor, err := db.Query(ctx, query, &arangodb.QueryOptions{
		BindVars: bindVars,
	})
	if err != nil {
		return "", err
	}
	defer cursor.Close()

	if cursor.HasMore() {
		var key string
		_, err := cursor.ReadDocument(ctx, &key)
		if err != nil {
			return "", err
		}
		return key, nil
	}

	return "", nil
}

// ListProjects returns every project across all tenants. Used by the event
// processor to fan recorrelation out after the global corpus changed.
func ListProjects(ctx context.Context, db arangodb.Database) ([]model.Project, error) {
	query := `
		FOR p IN project
			SORT p.tenant_id, p._key
			RETURN p
	`
	cursor, err := db.Query(ctx, query, nil)
	if err != nil {
		return nil, err
	}
	defer cursor.Close()

	var projects []model.Project
	for cursor.HasMore() {
		var project model.Project
		if _, err := cursor.ReadDocument(ctx, &project); err != nil {
			return nil, err
		}
		projects = append(projects, project)
	}
	return projects, nil
}
