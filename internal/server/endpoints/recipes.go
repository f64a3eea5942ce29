package endpoints

import (
	"net/http"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/galleykit/galley/internal/api"
	"github.com/galleykit/galley/internal/svcctx"
	"github.com/galleykit/galley/internal/types"
)

// ListRecipesEndpoint handles GET /api/recipes. An optional cookbook_id
// query parameter narrows the list to one cookbook.
type ListRecipesEndpoint struct{}

var _ api.Endpoint = (*ListRecipesEndpoint)(nil)

func (e *ListRecipesEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/recipes", e.handler
}

func (e *ListRecipesEndpoint) RequiresInit() bool { return true }

func (e *ListRecipesEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	st := svcctx.StoreFrom(r.Context())
	if st == nil {
		writeError(w, http.StatusServiceUnavailable, "store not initialized")
		return
	}

	recipes, err := st.ListRecipes(r.Context(), r.URL.Query().Get("cookbook_id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, recipes)
}

func (e *ListRecipesEndpoint) Command(getServerURL func() string) *cobra.Command {
	var cookbookID string
	cmd := &cobra.Command{
		Use:   "recipes",
		Short: "List extracted recipes",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			path := "/api/recipes"
			if cookbookID != "" {
				path += "?cookbook_id=" + url.QueryEscape(cookbookID)
			}
			var recipes []types.Recipe
			if err := client.Get(cmd.Context(), path, &recipes); err != nil {
				return err
			}
			return api.Output(recipes)
		},
	}
	cmd.Flags().StringVar(&cookbookID, "cookbook", "", "filter by cookbook ID")
	return cmd
}

// GetRecipeEndpoint handles GET /api/recipes/{id}.
type GetRecipeEndpoint struct{}

var _ api.Endpoint = (*GetRecipeEndpoint)(nil)

func (e *GetRecipeEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/recipes/{id}", e.handler
}

func (e *GetRecipeEndpoint) RequiresInit() bool { return true }

func (e *GetRecipeEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "recipe id is required")
		return
	}

	st := svcctx.StoreFrom(r.Context())
	if st == nil {
		writeError(w, http.StatusServiceUnavailable, "store not initialized")
		return
	}

	recipe, err := st.GetRecipe(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, recipe)
}

func (e *GetRecipeEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "recipe <id>",
		Short: "Get a recipe by ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var recipe types.Recipe
			if err := client.Get(cmd.Context(), "/api/recipes/"+args[0], &recipe); err != nil {
				return err
			}
			return api.Output(recipe)
		},
	}
}
