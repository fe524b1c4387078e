package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/illuminode/internal/api/models"
	"github.com/smazurov/illuminode/internal/protocol"
)

// registerCommandRoutes registers the raw mnemonic endpoint.
func (s *Server) registerCommandRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "run-command",
		Method:      http.MethodPost,
		Path:        "/api/commands",
		Summary:     "Run Command",
		Description: "Parse a wire mnemonic such as sc.red or rdpc.40.1 and execute it through the session",
		Tags:        []string{"commands"},
		Security:    withAuth(),
		Errors:      commandErrors,
	}, func(ctx context.Context, input *models.RawCommandRequest) (*models.CommandResponse, error) {
		req, err := protocol.Parse(input.Body.Command)
		if err != nil {
			return nil, s.deviceError(err)
		}
		return s.execute(ctx, req)
	})
}
