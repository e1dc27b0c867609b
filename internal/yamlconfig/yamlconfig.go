// Package yamlconfig implements the user-facing domain configuration
// file: scripts, schedules, file triggers and webhooks declared in a
// single YAML document, applied additively to the store and exported
// back to the same shape.
package yamlconfig

import (
	"context"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/mjarkko/scripter/internal/domain"
)

// Document is the top-level YAML shape for both apply and export.
type Document struct {
	Scripts      []ScriptEntry      `yaml:"scripts,omitempty"`
	Schedules    []ScheduleEntry    `yaml:"schedules,omitempty"`
	FileTriggers []FileTriggerEntry `yaml:"file_triggers,omitempty"`
	Webhooks     []WebhookEntry     `yaml:"webhooks,omitempty"`
}

type ScriptEntry struct {
	Name    string `yaml:"name"`
	Command string `yaml:"command"`
	Cwd     string `yaml:"cwd,omitempty"`
}

// ScheduleEntry carries either IntervalSeconds or Cron, never both —
// the same invariant domain.Schedule enforces at the store layer.
type ScheduleEntry struct {
	Script          string `yaml:"script"`
	IntervalSeconds *int64 `yaml:"interval_seconds,omitempty"`
	Cron            string `yaml:"cron,omitempty"`
	TZ              string `yaml:"tz,omitempty"`
}

type FileTriggerEntry struct {
	Script    string `yaml:"script"`
	Path      string `yaml:"path"`
	Recursive bool   `yaml:"recursive,omitempty"`
}

type WebhookEntry struct {
	Name   string `yaml:"name"`
	Script string `yaml:"script"`
}

func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}
	return &doc, nil
}

func (d *Document) Marshal() ([]byte, error) {
	out, err := yaml.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("marshal config yaml: %w", err)
	}
	return out, nil
}

type store interface {
	CreateScript(ctx context.Context, name, command, cwd string) (*domain.Script, error)
	GetScriptByName(ctx context.Context, name string) (*domain.Script, error)
	CreateIntervalSchedule(ctx context.Context, scriptID, intervalSeconds int64) (*domain.Schedule, error)
	CreateCronSchedule(ctx context.Context, scriptID int64, cron string, tz *string) (*domain.Schedule, error)
	CreateFileTrigger(ctx context.Context, scriptID int64, path string, recursive bool) (*domain.FileTrigger, error)
	CreateWebhook(ctx context.Context, name string, scriptID int64) (*domain.Webhook, error)
	ListScripts(ctx context.Context) ([]domain.Script, error)
	ListSchedules(ctx context.Context) ([]domain.Schedule, error)
	ListFileTriggers(ctx context.Context) ([]domain.FileTrigger, error)
	ListWebhooks(ctx context.Context) ([]domain.Webhook, error)
}

// Apply inserts every row the document describes. It is additive only —
// nothing is removed or updated. A schedule/trigger/webhook's `script`
// field may reference a script by name (resolved against names defined
// earlier in this same document or already in the store) or by numeric
// id.
func Apply(ctx context.Context, s store, doc *Document) error {
	nameToID := make(map[string]int64)

	for _, sc := range doc.Scripts {
		created, err := s.CreateScript(ctx, sc.Name, sc.Command, sc.Cwd)
		if err != nil {
			return fmt.Errorf("create script %q: %w", sc.Name, err)
		}
		nameToID[sc.Name] = created.ID
	}

	resolve := func(ref string) (int64, error) {
		if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
			return id, nil
		}
		if id, ok := nameToID[ref]; ok {
			return id, nil
		}
		existing, err := s.GetScriptByName(ctx, ref)
		if err != nil {
			return 0, fmt.Errorf("resolve script %q: %w", ref, err)
		}
		return existing.ID, nil
	}

	for _, sch := range doc.Schedules {
		scriptID, err := resolve(sch.Script)
		if err != nil {
			return err
		}
		if sch.Cron != "" && sch.IntervalSeconds != nil {
			return fmt.Errorf("schedule for %q: %w", sch.Script, domain.ErrInvalidSchedule)
		}
		if sch.Cron != "" {
			var tz *string
			if sch.TZ != "" {
				tz = &sch.TZ
			}
			if _, err := s.CreateCronSchedule(ctx, scriptID, sch.Cron, tz); err != nil {
				return fmt.Errorf("create cron schedule for %q: %w", sch.Script, err)
			}
			continue
		}
		if sch.IntervalSeconds == nil {
			return fmt.Errorf("schedule for %q sets neither cron nor interval_seconds", sch.Script)
		}
		if _, err := s.CreateIntervalSchedule(ctx, scriptID, *sch.IntervalSeconds); err != nil {
			return fmt.Errorf("create interval schedule for %q: %w", sch.Script, err)
		}
	}

	for _, ft := range doc.FileTriggers {
		scriptID, err := resolve(ft.Script)
		if err != nil {
			return err
		}
		if _, err := s.CreateFileTrigger(ctx, scriptID, ft.Path, ft.Recursive); err != nil {
			return fmt.Errorf("create file trigger for %q: %w", ft.Script, err)
		}
	}

	for _, w := range doc.Webhooks {
		scriptID, err := resolve(w.Script)
		if err != nil {
			return err
		}
		if _, err := s.CreateWebhook(ctx, w.Name, scriptID); err != nil {
			return fmt.Errorf("create webhook %q: %w", w.Name, err)
		}
	}

	return nil
}

// Export reads the current store back into the same YAML shape Apply
// consumes; reloading the exported document against an empty store
// reproduces the same set of scripts/schedules/triggers/webhooks (ids
// may differ).
func Export(ctx context.Context, s store) (*Document, error) {
	scripts, err := s.ListScripts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list scripts: %w", err)
	}
	idToName := make(map[int64]string, len(scripts))
	doc := &Document{}
	for _, sc := range scripts {
		idToName[sc.ID] = sc.Name
		doc.Scripts = append(doc.Scripts, ScriptEntry{Name: sc.Name, Command: sc.Command, Cwd: sc.Cwd})
	}

	scriptRef := func(id int64) string {
		if name, ok := idToName[id]; ok {
			return name
		}
		return strconv.FormatInt(id, 10)
	}

	schedules, err := s.ListSchedules(ctx)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	for _, sch := range schedules {
		entry := ScheduleEntry{Script: scriptRef(sch.ScriptID)}
		switch {
		case sch.Cron != nil:
			entry.Cron = *sch.Cron
			if sch.TZ != nil {
				entry.TZ = *sch.TZ
			}
		case sch.IntervalSeconds != nil:
			entry.IntervalSeconds = sch.IntervalSeconds
		default:
			continue
		}
		doc.Schedules = append(doc.Schedules, entry)
	}

	fileTriggers, err := s.ListFileTriggers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list file triggers: %w", err)
	}
	for _, ft := range fileTriggers {
		doc.FileTriggers = append(doc.FileTriggers, FileTriggerEntry{
			Script:    scriptRef(ft.ScriptID),
			Path:      ft.Path,
			Recursive: ft.Recursive,
		})
	}

	webhooks, err := s.ListWebhooks(ctx)
	if err != nil {
		return nil, fmt.Errorf("list webhooks: %w", err)
	}
	for _, w := range webhooks {
		doc.Webhooks = append(doc.Webhooks, WebhookEntry{Name: w.Name, Script: scriptRef(w.ScriptID)})
	}

	return doc, nil
}
