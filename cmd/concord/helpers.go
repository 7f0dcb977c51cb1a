package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/lodret/concord/internal/common"
	"github.com/lodret/concord/internal/model"
	"github.com/lodret/concord/internal/storage"
)

// initStorage opens the review database configured under database.path.
func initStorage(ctx context.Context) (*storage.SQLiteStorage, error) {
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		dbPath = "$HOME/.local/share/concord/concord.db"
	}

	dbPath = expandPath(dbPath)

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// expandPath expands ~ and environment variables in a path.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = home + path[1:]
		}
	}
	return os.ExpandEnv(path)
}

// loadDeal reads the deal file and resolves the effective stage. The
// --stage flag, when set, overrides whatever the file declares.
func loadDeal(path, stageFlag string) (*storage.DealFile, error) {
	deal, err := storage.LoadDealFile(path)
	if err != nil {
		return nil, err
	}

	if stageFlag != "" {
		stage := model.Stage(strings.ToUpper(stageFlag))
		switch stage {
		case model.StageInquiry, model.StageQuote, model.StageContract, model.StageBulk:
			deal.Stage = stage
		default:
			return nil, common.NewUserError(
				fmt.Sprintf("unknown stage %q (expected INQUIRY, QUOTE, CONTRACT or BULK)", stageFlag),
				common.ErrInvalidConfig)
		}
	}

	return deal, nil
}
