package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/example/triage/internal/ports/secondary"
)

// MaxMoodHistory is the number of mood entries kept per user.
const MaxMoodHistory = 30

// ProfileRepository implements secondary.ProfileRepository with SQLite.
type ProfileRepository struct {
	db *sql.DB
}

// NewProfileRepository creates a new SQLite profile repository.
func NewProfileRepository(db *sql.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// GetProfile retrieves a user's profile. PriorEscalations is counted from the
// escalations table.
func (r *ProfileRepository) GetProfile(ctx context.Context, userID string) (*secondary.ProfileRecord, error) {
	var (
		mood      string
		factors   string
		language  sql.NullString
		region    sql.NullString
		updatedAt sql.NullTime
	)

	record := &secondary.ProfileRecord{UserID: userID}
	err := r.db.QueryRowContext(ctx,
		`SELECT mood_history, protective_factors, language, region, updated_at,
			(SELECT COUNT(*) FROM escalations e WHERE e.user_id = p.user_id)
		FROM user_profiles p WHERE user_id = ?`,
		userID,
	).Scan(&mood, &factors, &language, &region, &updatedAt, &record.PriorEscalations)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("profile %s: %w", userID, secondary.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	if err := json.Unmarshal([]byte(mood), &record.MoodHistory); err != nil {
		return nil, fmt.Errorf("failed to decode mood history: %w", err)
	}
	if err := json.Unmarshal([]byte(factors), &record.ProtectiveFactors); err != nil {
		return nil, fmt.Errorf("failed to decode protective factors: %w", err)
	}
	record.Language = language.String
	record.Region = region.String
	record.UpdatedAt = updatedAt.Time

	return record, nil
}

// SaveProfile creates or replaces a user's profile.
func (r *ProfileRepository) SaveProfile(ctx context.Context, p *secondary.ProfileRecord) error {
	history := p.MoodHistory
	if len(history) > MaxMoodHistory {
		history = history[len(history)-MaxMoodHistory:]
	}
	if history == nil {
		history = []float64{}
	}
	mood, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("failed to encode mood history: %w", err)
	}
	factors, err := json.Marshal(nonNil(p.ProtectiveFactors))
	if err != nil {
		return fmt.Errorf("failed to encode protective factors: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO user_profiles (user_id, mood_history, protective_factors, language, region, updated_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(user_id) DO UPDATE SET
			mood_history = excluded.mood_history,
			protective_factors = excluded.protective_factors,
			language = excluded.language,
			region = excluded.region,
			updated_at = CURRENT_TIMESTAMP`,
		p.UserID,
		string(mood),
		string(factors),
		nullString(p.Language),
		nullString(p.Region),
	)
	if err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}

// AppendMood records a self-reported mood score, creating the profile if needed.
func (r *ProfileRepository) AppendMood(ctx context.Context, userID string, score float64) error {
	if score < 1 || score > 10 {
		return fmt.Errorf("mood score %.1f outside [1,10]", score)
	}

	profile, err := r.GetProfile(ctx, userID)
	if errors.Is(err, secondary.ErrNotFound) {
		profile = &secondary.ProfileRecord{UserID: userID}
	} else if err != nil {
		return err
	}

	profile.MoodHistory = append(profile.MoodHistory, score)
	return r.SaveProfile(ctx, profile)
}

// Ensure ProfileRepository implements the interface
var _ secondary.ProfileRepository = (*ProfileRepository)(nil)
