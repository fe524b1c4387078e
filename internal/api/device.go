package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/illuminode/internal/api/models"
)

type propertiesInput struct {
	Refresh bool `query:"refresh" doc:"Read the properties from the device instead of the cache"`
}

// registerDeviceRoutes registers state and device query endpoints.
func (s *Server) registerDeviceRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-state",
		Method:      http.MethodGet,
		Path:        "/api/state",
		Summary:     "Device State",
		Description: "Cached device state as last acknowledged by the firmware",
		Tags:        []string{"device"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.StateResponse, error) {
		return &models.StateResponse{Body: s.device.State()}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-properties",
		Method:      http.MethodGet,
		Path:        "/api/properties",
		Summary:     "Device Properties",
		Description: "Device name, LED count, bit depth, trigger counts and color channels",
		Tags:        []string{"device"},
		Security:    withAuth(),
		Errors:      []int{401, 502, 503},
	}, func(ctx context.Context, input *propertiesInput) (*models.PropertiesResponse, error) {
		props := s.device.CachedProperties()
		if props == nil || input.Refresh {
			var err error
			if props, err = s.device.Properties(ctx); err != nil {
				return nil, s.deviceError(err)
			}
		}
		return &models.PropertiesResponse{Body: *props}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-triggers",
		Method:      http.MethodGet,
		Path:        "/api/triggers",
		Summary:     "Trigger Settings",
		Description: "Trigger configuration as printed by the firmware",
		Tags:        []string{"device"},
		Security:    withAuth(),
		Errors:      []int{401, 409, 502, 503},
	}, func(ctx context.Context, _ *struct{}) (*models.TriggerSettingsResponse, error) {
		text, err := s.device.TriggerSettings(ctx)
		if err != nil {
			return nil, s.deviceError(err)
		}
		return &models.TriggerSettingsResponse{Body: models.TriggerSettingsData{Text: text}}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "sync-state",
		Method:      http.MethodPost,
		Path:        "/api/sync",
		Summary:     "Sync State",
		Description: "Re-read NA and array distance from the device and clear the stale flag",
		Tags:        []string{"device"},
		Security:    withAuth(),
		Errors:      []int{401, 409, 502, 503},
	}, func(ctx context.Context, _ *struct{}) (*models.StateResponse, error) {
		if err := s.device.Sync(ctx); err != nil {
			return nil, s.deviceError(err)
		}
		return &models.StateResponse{Body: s.device.State()}, nil
	})
}
