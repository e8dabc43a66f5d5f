package mutation

import (
	"context"
	"net/http"
	"net/url"

	"github.com/fiscaliza/backoffice-client/pkg/api"
)

// DeleteStrategies builds the standard removal chain for a resource, in
// preference order: soft-deactivate, hard delete by path, delete by query
// parameter, legacy POST-based delete.
//
// allowSimulated appends the terminal no-op strategy. It must stay false in
// production: a simulated success changes nothing on the server.
func DeleteStrategies(client *api.Client, resource, id string, allowSimulated bool) []Strategy {
	base := "/" + resource

	strategies := []Strategy{
		{
			Name: "deactivated",
			Do: func(ctx context.Context) error {
				_, err := client.Do(ctx, http.MethodPut, base+"/"+id+"/deactivate", nil, nil)
				return err
			},
		},
		{
			Name: "deleted",
			Do: func(ctx context.Context) error {
				_, err := client.Do(ctx, http.MethodDelete, base+"/"+id, nil, nil)
				return err
			},
		},
		{
			Name: "deleted_by_query",
			Do: func(ctx context.Context) error {
				query := url.Values{}
				query.Set("id", id)
				_, err := client.Do(ctx, http.MethodDelete, base, query, nil)
				return err
			},
		},
		{
			Name: "deleted_by_post",
			Do: func(ctx context.Context) error {
				_, err := client.Do(ctx, http.MethodPost, base+"/delete", nil, map[string]string{"id": id})
				return err
			},
		},
	}

	if allowSimulated {
		strategies = append(strategies, Simulated("delete "+resource))
	}
	return strategies
}

// CreateStrategies builds the creation chain for a resource. The backend's
// expected request-body shape differs across deployments, so the chain tries
// the flat payload, the data-wrapped payload, and the legacy /create route.
func CreateStrategies(client *api.Client, resource string, payload any, allowSimulated bool) []Strategy {
	base := "/" + resource

	strategies := []Strategy{
		{
			Name: "created",
			Do: func(ctx context.Context) error {
				_, err := client.Do(ctx, http.MethodPost, base, nil, payload)
				return err
			},
		},
		{
			Name: "created_wrapped",
			Do: func(ctx context.Context) error {
				_, err := client.Do(ctx, http.MethodPost, base, nil, map[string]any{"data": payload})
				return err
			},
		},
		{
			Name: "created_legacy",
			Do: func(ctx context.Context) error {
				_, err := client.Do(ctx, http.MethodPost, base+"/create", nil, payload)
				return err
			},
		},
	}

	if allowSimulated {
		strategies = append(strategies, Simulated("create "+resource))
	}
	return strategies
}

// Simulated returns the terminal no-op strategy: it succeeds without
// contacting the server so development builds always terminate in a success
// state when no real endpoint is reachable. The executor logs its use at
// WARN and the result carries Simulated=true.
func Simulated(operation string) Strategy {
	return Strategy{
		Name:      "simulated",
		Simulated: true,
		Do: func(ctx context.Context) error {
			return nil
		},
	}
}
