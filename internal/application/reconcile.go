package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/bnema/taskwatch/internal/domain"
	"github.com/bnema/taskwatch/internal/ports"
)

type ReconcileConfig struct {
	ServerOrigin    string
	ExtensionOrigin string
	HomeURL         string
}

type ReconcilePlan struct {
	Close    []int
	OpenHome bool
	// Skipped is set when a pending annotation suppressed reconciliation.
	Skipped bool
}

// Reconciler brings the host's tabs back to the idle layout: only server and
// extension pages remain, with exactly one home tab.
type Reconciler struct {
	browser         ports.Browser
	store           ports.KeyValueStore
	serverOrigin    string
	extensionOrigin string
	homeURL         string
	logger          *slog.Logger
}

func NewReconciler(browser ports.Browser, store ports.KeyValueStore, config ReconcileConfig, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	homeURL := strings.TrimSpace(config.HomeURL)
	if homeURL == "" {
		homeURL = config.ServerOrigin
	}
	return &Reconciler{
		browser:         browser,
		store:           store,
		serverOrigin:    originOf(config.ServerOrigin),
		extensionOrigin: originOf(config.ExtensionOrigin),
		homeURL:         homeURL,
		logger:          logger,
	}
}

func (r *Reconciler) Reconcile(ctx context.Context) (ReconcilePlan, error) {
	pending, err := r.pendingAnnotation(ctx)
	if err != nil {
		return ReconcilePlan{}, err
	}
	if pending {
		r.logger.Info("annotation pending, leaving tabs untouched")
		return ReconcilePlan{Skipped: true}, nil
	}
	if r.browser == nil {
		return ReconcilePlan{}, nil
	}

	tabs, err := r.browser.Tabs(ctx)
	if err != nil {
		return ReconcilePlan{}, fmt.Errorf("list tabs: %w", err)
	}

	plan := r.plan(tabs)
	if len(plan.Close) > 0 {
		if err := r.browser.CloseTabs(ctx, plan.Close); err != nil {
			return plan, fmt.Errorf("close tabs: %w", err)
		}
	}
	if plan.OpenHome {
		if err := r.browser.OpenTab(ctx, r.homeURL); err != nil {
			return plan, fmt.Errorf("open home tab: %w", err)
		}
	}
	r.logger.Info("tabs reconciled", "closed", len(plan.Close), "opened_home", plan.OpenHome)
	return plan, nil
}

func (r *Reconciler) plan(tabs []domain.Tab) ReconcilePlan {
	plan := ReconcilePlan{Close: []int{}}
	homeSeen := false
	for _, tab := range tabs {
		if r.isHome(tab.URL) {
			if homeSeen {
				plan.Close = append(plan.Close, tab.ID)
			}
			homeSeen = true
			continue
		}
		origin := originOf(tab.URL)
		if origin != "" && (origin == r.serverOrigin || origin == r.extensionOrigin) {
			continue
		}
		plan.Close = append(plan.Close, tab.ID)
	}
	plan.OpenHome = !homeSeen
	return plan
}

func (r *Reconciler) isHome(raw string) bool {
	return normalizeURL(raw) == normalizeURL(r.homeURL)
}

func (r *Reconciler) pendingAnnotation(ctx context.Context) (bool, error) {
	raw, err := r.store.Get(ctx, domain.KeyPendingAnnotation)
	if err != nil {
		if errors.Is(err, domain.ErrKeyNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("get pending annotation: %w", err)
	}
	pending, parseErr := strconv.ParseBool(strings.TrimSpace(raw))
	if parseErr != nil {
		return false, nil
	}
	return pending, nil
}

func originOf(raw string) string {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return ""
	}
	return strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host)
}

func normalizeURL(raw string) string {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || parsed.Host == "" {
		return strings.TrimRight(strings.TrimSpace(raw), "/")
	}
	path := strings.TrimRight(parsed.Path, "/")
	return strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host) + path
}
