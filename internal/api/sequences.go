package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/illuminode/internal/api/models"
	"github.com/smazurov/illuminode/internal/protocol"
)

func sequenceParams(body models.SequenceBody, maxNA int) protocol.SequenceParams {
	params := protocol.SequenceParams{
		DelayMs:      body.DelayMs,
		Acquisitions: body.Acquisitions,
		MaxNA:        maxNA,
	}
	for i, mode := range body.TriggerModes {
		if i < protocol.TriggerChannels {
			params.Triggers[i] = protocol.TriggerMode(mode)
		}
	}
	return params
}

// registerSequenceRoutes registers acquisition sequence and trigger endpoints.
func (s *Server) registerSequenceRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "setup-trigger",
		Method:      http.MethodPost,
		Path:        "/api/triggers/{channel}",
		Summary:     "Setup Trigger",
		Description: "Configure pulse width and start delay of a trigger channel",
		Tags:        []string{"sequences"},
		Security:    withAuth(),
		Errors:      commandErrors,
	}, func(ctx context.Context, input *models.TriggerSetupRequest) (*models.CommandResponse, error) {
		return s.execute(ctx, protocol.SetupTrigger{
			Channel:      input.Channel,
			PulseWidthUs: input.Body.PulseWidthUs,
			StartDelayUs: input.Body.StartDelayUs,
		})
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "run-dpc-sequence",
		Method:      http.MethodPost,
		Path:        "/api/sequences/dpc",
		Summary:     "Run DPC Sequence",
		Description: "Start a differential phase contrast sequence. Requires a prior clear; the device runs it until the next clear.",
		Tags:        []string{"sequences"},
		Security:    withAuth(),
		Errors:      commandErrors,
	}, func(ctx context.Context, input *models.DpcSequenceRequest) (*models.CommandResponse, error) {
		return s.execute(ctx, protocol.RunDpcSequence{Params: sequenceParams(input.Body, 0)})
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "run-fpm-sequence",
		Method:      http.MethodPost,
		Path:        "/api/sequences/fpm",
		Summary:     "Run FPM Sequence",
		Description: "Start a Fourier ptychography sequence over LEDs up to max_na. Requires a prior clear.",
		Tags:        []string{"sequences"},
		Security:    withAuth(),
		Errors:      commandErrors,
	}, func(ctx context.Context, input *models.FpmSequenceRequest) (*models.CommandResponse, error) {
		return s.execute(ctx, protocol.RunFpmSequence{Params: sequenceParams(input.Body.SequenceBody, input.Body.MaxNA)})
	})
}
