package script

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dop251/goja"

	"github.com/bnema/taskwatch/internal/domain"
	"github.com/bnema/taskwatch/internal/ports"
)

var ErrOutsideRoot = errors.New("script path escapes scripts root")

// Host runs injected scripts in a fresh JavaScript runtime per call. Scripts
// see a console that logs through slog and a storage object over the shared
// store.
type Host struct {
	root   string
	store  ports.KeyValueStore
	logger *slog.Logger
}

var _ ports.ScriptHost = (*Host)(nil)

func NewHost(root string, store ports.KeyValueStore, logger *slog.Logger) (*Host, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("scripts root must not be empty")
	}
	absolute, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve scripts root: %w", err)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Host{root: absolute, store: store, logger: logger}, nil
}

func (h *Host) InjectScript(ctx context.Context, path string) (err error) {
	full, err := h.resolve(path)
	if err != nil {
		return err
	}
	source, err := os.ReadFile(full)
	if err != nil {
		return fmt.Errorf("read script %s: %w", path, err)
	}

	vm := goja.New()
	logger := h.logger.With("script", path)
	if err := h.setupGlobals(ctx, vm, logger); err != nil {
		return err
	}

	stop := context.AfterFunc(ctx, func() {
		vm.Interrupt(ctx.Err())
	})
	defer stop()

	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("script %s panicked: %v", path, recovered)
		}
	}()

	if _, runErr := vm.RunScript(path, string(source)); runErr != nil {
		var interrupted *goja.InterruptedError
		if errors.As(runErr, &interrupted) && ctx.Err() != nil {
			return fmt.Errorf("script %s interrupted: %w", path, ctx.Err())
		}
		return fmt.Errorf("run script %s: %w", path, runErr)
	}
	logger.Debug("script injected")
	return nil
}

func (h *Host) resolve(path string) (string, error) {
	cleaned := filepath.Clean(strings.TrimSpace(path))
	if cleaned == "." || filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, path)
	}
	full := filepath.Join(h.root, cleaned)
	rel, err := filepath.Rel(h.root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, path)
	}
	return full, nil
}

func (h *Host) setupGlobals(ctx context.Context, vm *goja.Runtime, logger *slog.Logger) error {
	console := vm.NewObject()
	levels := map[string]slog.Level{
		"log":   slog.LevelInfo,
		"info":  slog.LevelInfo,
		"debug": slog.LevelDebug,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	for name, level := range levels {
		if err := console.Set(name, func(call goja.FunctionCall) goja.Value {
			logger.Log(ctx, level, joinArguments(call.Arguments))
			return goja.Undefined()
		}); err != nil {
			return fmt.Errorf("define console.%s: %w", name, err)
		}
	}
	if err := vm.Set("console", console); err != nil {
		return fmt.Errorf("define console: %w", err)
	}

	if h.store == nil {
		return nil
	}
	storage := map[string]interface{}{
		"get": func(key string) goja.Value {
			value, err := h.store.Get(ctx, key)
			if errors.Is(err, domain.ErrKeyNotFound) {
				return goja.Null()
			}
			if err != nil {
				panic(vm.NewGoError(err))
			}
			return vm.ToValue(value)
		},
		"set": func(key, value string) {
			if err := h.store.Set(ctx, key, value); err != nil {
				panic(vm.NewGoError(err))
			}
		},
		"remove": func(key string) {
			if err := h.store.Remove(ctx, key); err != nil {
				panic(vm.NewGoError(err))
			}
		},
	}
	if err := vm.Set("storage", storage); err != nil {
		return fmt.Errorf("define storage: %w", err)
	}
	return nil
}

func joinArguments(args []goja.Value) string {
	parts := make([]string, 0, len(args))
	for _, arg := range args {
		parts = append(parts, arg.String())
	}
	return strings.Join(parts, " ")
}
