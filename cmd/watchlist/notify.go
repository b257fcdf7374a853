package main

import (
	"context"
	"log/slog"
	"slices"

	"watchlist/internal/availability"
	"watchlist/internal/logging"
	"watchlist/internal/notifications"
	"watchlist/internal/watchlist"
)

// detectArrivals lists refreshed keys that gained providers since the stored
// record. Keys without a previous record are skipped so a first check stays
// quiet.
func detectArrivals(result *availability.BatchResult, titles []watchlist.Title) []notifications.Arrival {
	names := make(map[string]string, len(titles))
	for _, title := range titles {
		names[title.IMDbID] = title.Name
	}
	var arrivals []notifications.Arrival
	for _, entry := range result.Entries {
		if !entry.Refreshed || entry.Record == nil || !entry.Record.Available() {
			continue
		}
		before := entry.Previous
		if before == nil {
			continue
		}
		var added []string
		for _, provider := range entry.Record.Providers {
			if !slices.Contains(before.Providers, provider) {
				added = append(added, provider)
			}
		}
		if len(added) == 0 {
			continue
		}
		title := names[entry.Key.TitleID]
		if title == "" {
			title = entry.Key.TitleID
		}
		arrivals = append(arrivals, notifications.Arrival{
			Title:     title,
			Region:    string(entry.Key.Region),
			Providers: added,
		})
	}
	return arrivals
}

// firstFailure returns the error of the first failed lookup in the batch.
func firstFailure(result *availability.BatchResult) error {
	for _, entry := range result.Entries {
		if entry.Status == availability.StatusFetchFailed && entry.Outcome != nil && entry.Outcome.Err != nil {
			return entry.Outcome.Err
		}
	}
	return nil
}

func publishCheckEvents(ctx context.Context, logger *slog.Logger, notifier notifications.Service, name string, result *availability.BatchResult, titles []watchlist.Title) {
	if arrivals := detectArrivals(result, titles); len(arrivals) > 0 {
		err := notifier.Publish(ctx, notifications.EventTitlesAvailable, notifications.Payload{
			"watchlist": name,
			"arrivals":  arrivals,
		})
		if err != nil {
			logNotifyFailure(logger, err)
		}
	}
	if result.Manifest.Failed > 0 {
		payload := notifications.Payload{
			"watchlist": name,
			"failed":    result.Manifest.Failed,
			"lookups":   result.Manifest.Unique,
		}
		if err := firstFailure(result); err != nil {
			payload["error"] = err
		}
		if err := notifier.Publish(ctx, notifications.EventLookupsFailed, payload); err != nil {
			logNotifyFailure(logger, err)
		}
	}
}

func logNotifyFailure(logger *slog.Logger, err error) {
	logging.WarnWithContext(logger, "notification not delivered",
		"ntfy_publish_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
		logging.String(logging.FieldImpact, "availability changes were not pushed"))
}
