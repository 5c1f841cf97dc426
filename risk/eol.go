package risk

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/arangodb/go-driver/v2/arangodb"

	"github.com/riskhub/riskhub-backend/model"
	"github.com/riskhub/riskhub-backend/normalize"
)

// EOLExposure is one project component running a product cycle that has
// reached end of life.
type EOLExposure struct {
	ComponentID      string     `json:"component_id"`
	ComponentName    string     `json:"component_name"`
	ComponentVersion string     `json:"component_version"`
	Product          string     `json:"product"`
	Cycle            string     `json:"cycle"`
	EOLDate          *time.Time `json:"eol_date,omitempty"`
	Latest           string     `json:"latest,omitempty"`
}

// MatchEOL joins components against end-of-life product cycles by name.
// A cycle matches when the component version sits inside it ("16" covers
// 16 and 16.x). Components with an unknown version match every expired
// cycle of the product since they cannot be ruled out.
func MatchEOL(components []model.Component, products []model.EOLProduct) []EOLExposure {
	byProduct := make(map[string][]model.EOLProduct)
	for _, p := range products {
		if !p.IsEOL {
			continue
		}
		name := strings.ToLower(p.Product)
		byProduct[name] = append(byProduct[name], p)
	}

	var exposures []EOLExposure
	for _, comp := range components {
		for _, p := range byProduct[strings.ToLower(comp.Name)] {
			if !cycleCovers(p.Cycle, comp.Version) {
				continue
			}
			exposures = append(exposures, EOLExposure{
				ComponentID:      comp.Key,
				ComponentName:    comp.Name,
				ComponentVersion: comp.Version,
				Product:          p.Product,
				Cycle:            p.Cycle,
				EOLDate:          p.EOLDate,
				Latest:           p.Latest,
			})
		}
	}

	sort.SliceStable(exposures, func(i, j int) bool {
		if exposures[i].ComponentName != exposures[j].ComponentName {
			return exposures[i].ComponentName < exposures[j].ComponentName
		}
		return exposures[i].Cycle < exposures[j].Cycle
	})
	return exposures
}

func cycleCovers(cycle, version string) bool {
	if version == normalize.VersionUnknown {
		return true
	}
	return version == cycle || strings.HasPrefix(version, cycle+".")
}

// EOLExposure reports the project's components whose product cycle is past
// end of life, read from the current feed state.
func (a *Aggregator) EOLExposure(ctx context.Context, tenantID, projectID string) ([]EOLExposure, error) {
	query := `
		FOR c IN component
			FILTER c.tenant_id == @tenant AND c.project_id == @project
			LET imp = DOCUMENT("sbom_import", c.import_id)
			FILTER imp != null AND imp.superseded != true
			RETURN c
	`
	cursor, err := a.db.Query(ctx, query, &arangodb.QueryOptions{
		BindVars: map[string]interface{}{"tenant": tenantID, "project": projectID},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load components: %w", err)
	}
	var components []model.Component
	for cursor.HasMore() {
		var comp model.Component
		if _, err := cursor.ReadDocument(ctx, &comp); err != nil {
			cursor.Close()
			return nil, err
		}
		components = append(components, comp)
	}
	cursor.Close()

	if len(components) == 0 {
		return nil, nil
	}

	names := make([]string, 0, len(components))
	seen := make(map[string]bool, len(components))
	for _, comp := range components {
		name := strings.ToLower(comp.Name)
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}

	productQuery := `
		FOR p IN eol_product
			FILTER p.is_eol == true AND LOWER(p.product) IN @names
			RETURN p
	`
	cursor, err = a.db.Query(ctx, productQuery, &arangodb.QueryOptions{
		BindVars: map[string]interface{}{"names": names},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load eol products: %w", err)
	}
	defer cursor.Close()
	var products []model.EOLProduct
	for cursor.HasMore() {
		var product model.EOLProduct
		if _, err := cursor.ReadDocument(ctx, &product); err != nil {
			return nil, err
		}
		products = append(products, product)
	}

	return MatchEOL(components, products), nil
}
