package main

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/graph-gophers/dataloader/v7"
)

// DataLoaderContextKey is the key used to store dataloaders in context
type DataLoaderContextKey string

const dataLoaderKey DataLoaderContextKey = "dataloader"

// DataLoaders holds the per-request batch loaders
type DataLoaders struct {
	ProfileLoader *dataloader.Loader[int, *Profile]
}

// NewDataLoaders creates new dataloaders with the database connection
func NewDataLoaders(db *sql.DB) *DataLoaders {
	return &DataLoaders{
		ProfileLoader: dataloader.NewBatchedLoader(profileBatchFn(db), dataloader.WithWait[int, *Profile](16*time.Millisecond)),
	}
}

// GetDataLoadersFromContext retrieves dataloaders from context
func GetDataLoadersFromContext(ctx context.Context) *DataLoaders {
	if dl, ok := ctx.Value(dataLoaderKey).(*DataLoaders); ok {
		return dl
	}
	return nil
}

// WithDataLoaders adds dataloaders to context
func WithDataLoaders(ctx context.Context, dl *DataLoaders) context.Context {
	return context.WithValue(ctx, dataLoaderKey, dl)
}

// profileBatchFn collapses N profile lookups into one IN query, preserving
// the key order the loader contract requires. Missing and soft-deleted
// profiles resolve to a per-key error.
func profileBatchFn(db *sql.DB) dataloader.BatchFunc[int, *Profile] {
	return func(ctx context.Context, keys []int) []*dataloader.Result[*Profile] {
		results := make([]*dataloader.Result[*Profile], len(keys))

		keyMap := make(map[int]int) // userID -> index in results
		for i, key := range keys {
			keyMap[key] = i
			results[i] = &dataloader.Result[*Profile]{}
		}

		if len(keys) == 0 {
			return results
		}

		placeholders := make([]string, len(keys))
		args := make([]interface{}, len(keys))
		for i, key := range keys {
			placeholders[i] = fmt.Sprintf("$%d", i+1)
			args[i] = key
		}

		query := fmt.Sprintf(`
			SELECT `+profileColumns+`
			FROM profiles
			WHERE user_id IN (%s) AND is_deleted = FALSE
		`, strings.Join(placeholders, ", "))

		rows, err := db.QueryContext(ctx, query, args...)
		if err != nil {
			for i := range results {
				results[i].Error = err
			}
			return results
		}
		defer rows.Close()

		for rows.Next() {
			profile, err := scanProfile(rows)
			if err != nil {
				for i := range results {
					if results[i].Data == nil && results[i].Error == nil {
						results[i].Error = err
					}
				}
				return results
			}
			if idx, ok := keyMap[profile.UserID]; ok {
				results[idx].Data = profile
			}
		}
		if err := rows.Err(); err != nil {
			for i := range results {
				if results[i].Data == nil && results[i].Error == nil {
					results[i].Error = err
				}
			}
			return results
		}

		for i, key := range keys {
			if results[i].Data == nil && results[i].Error == nil {
				results[i].Error = fmt.Errorf("profile not found for user %d", key)
			}
		}

		return results
	}
}
