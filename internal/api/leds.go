package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/illuminode/internal/api/models"
	"github.com/smazurov/illuminode/internal/protocol"
)

// registerLEDRoutes registers per-LED drawing and geometry endpoints.
func (s *Server) registerLEDRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "draw-leds",
		Method:      http.MethodPost,
		Path:        "/api/leds",
		Summary:     "Draw LEDs",
		Description: "Light an explicit list of LEDs. Indices are checked against the device LED count when known.",
		Tags:        []string{"leds"},
		Security:    withAuth(),
		Errors:      commandErrors,
	}, func(ctx context.Context, input *models.LedsRequest) (*models.CommandResponse, error) {
		return s.execute(ctx, protocol.DrawLeds{Indices: input.Body.Indices})
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-led-positions",
		Method:      http.MethodGet,
		Path:        "/api/leds/positions",
		Summary:     "LED Positions",
		Description: "LED geometry in millimeters or NA coordinates, ordered by index",
		Tags:        []string{"leds"},
		Security:    withAuth(),
		Errors:      []int{401, 409, 502, 503},
	}, func(ctx context.Context, input *models.LedPositionsRequest) (*models.LedPositionsResponse, error) {
		var data models.LedPositionsData
		if input.Coordinates == "na" {
			positions, err := s.device.LedPositionsNA(ctx)
			if err != nil {
				return nil, s.deviceError(err)
			}
			data.PositionsNA, data.Count = positions, len(positions)
		} else {
			positions, err := s.device.LedPositions(ctx)
			if err != nil {
				return nil, s.deviceError(err)
			}
			data.Positions, data.Count = positions, len(positions)
		}
		return &models.LedPositionsResponse{Body: data}, nil
	})
}
