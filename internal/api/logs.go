package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"
	"github.com/smazurov/illuminode/internal/api/models"
	"github.com/smazurov/illuminode/internal/events"
	"github.com/smazurov/illuminode/internal/logging"
)

func toLogEvent(entry logging.LogEntry) events.LogEntryEvent {
	return events.LogEntryEvent{
		Timestamp:  entry.Timestamp.Format(time.RFC3339Nano),
		Level:      entry.Level,
		Module:     entry.Module,
		Message:    entry.Message,
		Attributes: entry.Attributes,
	}
}

// recentLogs returns the newest limit buffered entries, optionally for one module.
func recentLogs(module string, limit int) []logging.LogEntry {
	buffer := logging.GetBuffer()
	if buffer == nil {
		return []logging.LogEntry{}
	}
	var keep func(logging.LogEntry) bool
	if module != "" {
		keep = func(e logging.LogEntry) bool { return e.Module == module }
	}
	entries := buffer.Tail(limit, keep)
	if entries == nil {
		return []logging.LogEntry{}
	}
	return entries
}

// globalLogModule names the default level in the log level endpoints.
const globalLogModule = "global"

func logLevels() *models.LogLevelsResponse {
	levels := logging.Levels()
	levels[globalLogModule] = levels[""]
	delete(levels, "")
	return &models.LogLevelsResponse{Body: models.LogLevelsData{Levels: levels}}
}

// registerLogRoutes registers the log history, level and streaming endpoints.
func (s *Server) registerLogRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-log-levels",
		Method:      http.MethodGet,
		Path:        "/api/logs/levels",
		Summary:     "Log Levels",
		Description: "Effective log level of every module",
		Tags:        []string{"logs"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.LogLevelsResponse, error) {
		return logLevels(), nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-log-level",
		Method:      http.MethodPut,
		Path:        "/api/logs/levels/{module}",
		Summary:     "Set Log Level",
		Description: "Change the level of one module, or of every module without an override when module is \"global\"",
		Tags:        []string{"logs"},
		Security:    withAuth(),
		Errors:      []int{401, 422},
	}, func(_ context.Context, input *models.SetLogLevelRequest) (*models.LogLevelsResponse, error) {
		module := input.Module
		if module == globalLogModule {
			module = ""
		}
		if err := logging.SetLevel(module, input.Body.Level); err != nil {
			return nil, huma.Error422UnprocessableEntity(err.Error())
		}
		s.logger.Info("Log level changed", "target", input.Module, "level", input.Body.Level)
		return logLevels(), nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-logs",
		Method:      http.MethodGet,
		Path:        "/api/logs",
		Summary:     "Recent Logs",
		Description: "Recent log entries from the in-memory ring buffer",
		Tags:        []string{"logs"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, input *models.LogsRequest) (*models.LogsResponse, error) {
		entries := recentLogs(input.Module, input.Limit)
		return &models.LogsResponse{Body: models.LogsData{Entries: entries, Count: len(entries)}}, nil
	})

	sse.Register(s.api, huma.Operation{
		OperationID: "logs-stream",
		Method:      http.MethodGet,
		Path:        "/api/logs/stream",
		Summary:     "Log Stream",
		Description: "Real-time log streaming via Server-Sent Events. Sends historical logs first, then streams new logs.",
		Tags:        []string{"logs"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"message": events.LogEntryEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		// Subscribe before replaying history so nothing falls in between
		eventCh := make(chan any, 100)
		unsubscribe := events.SubscribeToChannel[events.LogEntryEvent](s.eventBus, eventCh)
		defer unsubscribe()

		for _, entry := range recentLogs("", 0) {
			if err := send.Data(toLogEvent(entry)); err != nil {
				return
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})
}
