package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/illuminode/internal/api/models"
	"github.com/smazurov/illuminode/internal/protocol"
)

// statusFor maps an error code to its HTTP status.
func statusFor(code protocol.ErrorCode) int {
	switch code {
	case protocol.ErrInvalidParameter:
		return http.StatusUnprocessableEntity
	case protocol.ErrSequenceNotArmed, protocol.ErrSequenceActive:
		return http.StatusConflict
	case protocol.ErrDeviceError, protocol.ErrUnexpectedResponse:
		return http.StatusBadGateway
	case protocol.ErrSessionInvalid, protocol.ErrTransportFailure:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// deviceError logs a failed command once and converts it to a huma error.
func (s *Server) deviceError(err error) error {
	var perr *protocol.Error
	if !errors.As(err, &perr) {
		s.logger.Warn("Command failed", "error", err)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return huma.Error503ServiceUnavailable("request canceled while waiting for the device", err)
		}
		return huma.Error500InternalServerError("command failed", err)
	}

	s.logger.Warn("Command failed",
		"command", perr.Command,
		"code", perr.Code,
		"raw", perr.Raw,
		"error", err)

	detail := &huma.ErrorDetail{Message: string(perr.Code), Location: "command", Value: perr.Command}
	if perr.Raw != "" {
		detail = &huma.ErrorDetail{Message: string(perr.Code), Location: "device", Value: perr.Raw}
	}
	return huma.NewError(statusFor(perr.Code), perr.Error(), detail)
}

// execute runs one request and reports the result with the new state.
func (s *Server) execute(ctx context.Context, req protocol.Request) (*models.CommandResponse, error) {
	resp, err := s.device.Do(ctx, req)
	if err != nil {
		return nil, s.deviceError(err)
	}
	return &models.CommandResponse{
		Body: models.CommandData{
			Command:      resp.Command,
			Lines:        resp.Lines,
			Acknowledged: resp.Acknowledged,
			Skipped:      resp.Skipped,
			ElapsedMs:    resp.Elapsed.Milliseconds(),
			State:        s.device.State(),
		},
	}, nil
}
