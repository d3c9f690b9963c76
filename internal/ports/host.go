package ports

import (
	"context"

	"github.com/bnema/taskwatch/internal/domain"
)

// Browser exposes the shell's window and tab primitives.
type Browser interface {
	Tabs(ctx context.Context) ([]domain.Tab, error)
	CloseTabs(ctx context.Context, ids []int) error
	OpenTab(ctx context.Context, url string) error
}

type Badge interface {
	SetBadge(ctx context.Context, indicator domain.Indicator) error
}

// Notifier delivers user-visible signals that are not part of the badge.
type Notifier interface {
	ShowBanner(ctx context.Context, message string) error
	ForceLogout(ctx context.Context, reason string) error
}

type ScriptHost interface {
	InjectScript(ctx context.Context, path string) error
}

// TabReporter is implemented by browsers whose tab list is pushed by the
// shell rather than queried.
type TabReporter interface {
	ReportTabs(ctx context.Context, tabs []domain.Tab) error
}
