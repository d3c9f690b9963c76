package application

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/bnema/taskwatch/internal/domain"
)

type CommandName string

const (
	CommandCheckLoggingStatus CommandName = "check_logging_status"
	CommandAlterLoggingStatus CommandName = "alter_logging_status"
	CommandGetActiveTask      CommandName = "get_active_task"
	CommandSendMessage        CommandName = "send_message"
	CommandGetPopupData       CommandName = "get_popup_data"
	CommandInjectScript       CommandName = "inject_script"
	CommandLogin              CommandName = "login"
	CommandReportTabs         CommandName = "report_tabs"
)

type Empty struct{}

type Ack struct {
	Success bool `json:"success"`
}

type LoggingStatus struct {
	LogStatus bool `json:"log_status"`
}

type AlterLoggingStatusCommand struct {
	LogStatus *bool `json:"log_status"`
}

type ActiveTask struct {
	IsTaskActive bool          `json:"is_task_active"`
	TaskID       domain.TaskID `json:"task_id"`
}

type SendMessageCommand struct {
	Payload  json.RawMessage `json:"payload"`
	SendFlag bool            `json:"send_flag"`
}

type PopupData struct {
	LogStatus  bool            `json:"log_status"`
	TaskID     domain.TaskID   `json:"task_id"`
	TaskInfo   json.RawMessage `json:"task_info"`
	PendingURL *string         `json:"pending_url"`
}

type InjectScriptCommand struct {
	Script string `json:"script"`
}

type LoginCommand struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type ReportTabsCommand struct {
	Tabs []domain.Tab `json:"tabs"`
}

type envelopeHeader struct {
	Type CommandName `json:"type"`
}

type handlerFunc func(ctx context.Context, raw json.RawMessage) (any, error)

// Dispatcher maps command names to typed handlers.
type Dispatcher struct {
	handlers map[CommandName]handlerFunc
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: map[CommandName]handlerFunc{}}
}

// register binds name to fn. The whole envelope is decoded into In, so the
// command fields sit next to "type".
func register[In any, Out any](d *Dispatcher, name CommandName, fn func(context.Context, In) (Out, error)) {
	d.handlers[name] = func(ctx context.Context, raw json.RawMessage) (any, error) {
		var input In
		if len(bytes.TrimSpace(raw)) > 0 {
			if err := json.Unmarshal(raw, &input); err != nil {
				return nil, fmt.Errorf("%w: decode %s: %v", domain.ErrInvalidInput, name, err)
			}
		}
		return fn(ctx, input)
	}
}

func (d *Dispatcher) Names() []CommandName {
	names := make([]CommandName, 0, len(d.handlers))
	for name := range d.handlers {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

func (d *Dispatcher) Dispatch(ctx context.Context, name CommandName, raw json.RawMessage) (any, error) {
	handler, ok := d.handlers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownCommand, name)
	}
	return handler(ctx, raw)
}

// DispatchEnvelope routes a {"type": ...} message.
func (d *Dispatcher) DispatchEnvelope(ctx context.Context, envelope []byte) (any, error) {
	var header envelopeHeader
	if err := json.Unmarshal(envelope, &header); err != nil {
		return nil, fmt.Errorf("%w: decode envelope: %v", domain.ErrInvalidInput, err)
	}
	if header.Type == "" {
		return nil, fmt.Errorf("%w: envelope has no type", domain.ErrInvalidInput)
	}
	return d.Dispatch(ctx, header.Type, envelope)
}
