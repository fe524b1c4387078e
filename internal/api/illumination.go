package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/illuminode/internal/api/models"
	"github.com/smazurov/illuminode/internal/protocol"
)

var commandErrors = []int{400, 401, 409, 422, 502, 503}

// registerIlluminationRoutes registers the static illumination setters.
func (s *Server) registerIlluminationRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "clear",
		Method:      http.MethodPost,
		Path:        "/api/clear",
		Summary:     "Clear",
		Description: "Turn all LEDs off. Aborts a running sequence and arms the next one.",
		Tags:        []string{"illumination"},
		Security:    withAuth(),
		Errors:      commandErrors,
	}, func(ctx context.Context, _ *struct{}) (*models.CommandResponse, error) {
		return s.execute(ctx, protocol.Clear{})
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "reset",
		Method:      http.MethodPost,
		Path:        "/api/reset",
		Summary:     "Reset",
		Description: "Reset the device. All cached state is forgotten.",
		Tags:        []string{"illumination"},
		Security:    withAuth(),
		Errors:      commandErrors,
	}, func(ctx context.Context, _ *struct{}) (*models.CommandResponse, error) {
		return s.execute(ctx, protocol.Reset{})
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "show-pattern",
		Method:      http.MethodPost,
		Path:        "/api/pattern",
		Summary:     "Show Pattern",
		Description: "Display a static pattern: brightfield, annulus, DPC half or color DPC",
		Tags:        []string{"illumination"},
		Security:    withAuth(),
		Errors:      commandErrors,
	}, func(ctx context.Context, input *models.PatternRequest) (*models.CommandResponse, error) {
		return s.execute(ctx, protocol.ShowPattern{Name: protocol.Pattern(input.Body.Name)})
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-color",
		Method:      http.MethodPost,
		Path:        "/api/color",
		Summary:     "Set Color",
		Description: "Set a color preset by name or a custom r, g, b triple",
		Tags:        []string{"illumination"},
		Security:    withAuth(),
		Errors:      commandErrors,
	}, func(ctx context.Context, input *models.ColorRequest) (*models.CommandResponse, error) {
		body := input.Body
		custom := body.R != nil || body.G != nil || body.B != nil
		switch {
		case body.Name != "" && custom:
			return nil, huma.Error400BadRequest("give either name or r, g, b")
		case body.Name != "":
			return s.execute(ctx, protocol.SetColor{Color: protocol.PresetColor(protocol.ColorPreset(body.Name))})
		case body.R == nil || body.G == nil || body.B == nil:
			return nil, huma.Error400BadRequest("custom colors need all of r, g and b")
		}
		return s.execute(ctx, protocol.SetColor{Color: protocol.RGB(*body.R, *body.G, *body.B)})
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-brightness",
		Method:      http.MethodPost,
		Path:        "/api/brightness",
		Summary:     "Set Brightness",
		Tags:        []string{"illumination"},
		Security:    withAuth(),
		Errors:      commandErrors,
	}, func(ctx context.Context, input *models.BrightnessRequest) (*models.CommandResponse, error) {
		return s.execute(ctx, protocol.SetBrightness{Value: input.Body.Value})
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-na",
		Method:      http.MethodPost,
		Path:        "/api/na",
		Summary:     "Set Numerical Aperture",
		Description: "Set NA either as an integer x100 (value) or as a float (na)",
		Tags:        []string{"illumination"},
		Security:    withAuth(),
		Errors:      commandErrors,
	}, func(ctx context.Context, input *models.NARequest) (*models.CommandResponse, error) {
		body := input.Body
		switch {
		case body.Value != nil && body.NA != nil:
			return nil, huma.Error400BadRequest("give either value or na")
		case body.Value != nil:
			return s.execute(ctx, protocol.SetNA{Value: *body.Value})
		case body.NA != nil:
			value, err := protocol.NAFromFloat(*body.NA)
			if err != nil {
				return nil, s.deviceError(err)
			}
			return s.execute(ctx, protocol.SetNA{Value: value})
		}
		return nil, huma.Error400BadRequest("value or na is required")
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-array-distance",
		Method:      http.MethodPost,
		Path:        "/api/distance",
		Summary:     "Set Array Distance",
		Tags:        []string{"illumination"},
		Security:    withAuth(),
		Errors:      commandErrors,
	}, func(ctx context.Context, input *models.DistanceRequest) (*models.CommandResponse, error) {
		return s.execute(ctx, protocol.SetArrayDistance{Millimeters: input.Body.Millimeters})
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-auto-clear",
		Method:      http.MethodPost,
		Path:        "/api/autoclear",
		Summary:     "Set Auto Clear",
		Tags:        []string{"illumination"},
		Security:    withAuth(),
		Errors:      commandErrors,
	}, func(ctx context.Context, input *models.AutoClearRequest) (*models.CommandResponse, error) {
		return s.execute(ctx, protocol.SetAutoClear{Enabled: input.Body.Enabled})
	})
}
