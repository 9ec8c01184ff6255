package postgres

import (
	"context"
	"errors"

	"github.com/applypilot/applypilot/internal/campaign"
	"github.com/applypilot/applypilot/internal/store"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ProfileRepository struct {
	pool *pgxpool.Pool
}

func (r *ProfileRepository) GetProfile(ctx context.Context, userID string) (*campaign.Profile, error) {
	query := `
        SELECT user_id, preferred_job_titles, first_name, last_name,
               phone_country_code, phone_national, contact_email, gender,
               contract_type, earliest_start, latest_end,
               min_duration_months, max_duration_months, target_zone,
               cv_document_id, context_notes, reply_to_email, access_code
        FROM profiles
        WHERE user_id = $1`

	var p campaign.Profile
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&p.UserID,
		&p.PreferredJobTitles,
		&p.FirstName,
		&p.LastName,
		&p.PhoneCountryCode,
		&p.PhoneNational,
		&p.ContactEmail,
		&p.Gender,
		&p.ContractType,
		&p.EarliestStart,
		&p.LatestEnd,
		&p.MinDurationMonths,
		&p.MaxDurationMonths,
		&p.TargetZone,
		&p.CVDocumentID,
		&p.ContextNotes,
		&p.ReplyToEmail,
		&p.AccessCode,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}

	return &p, nil
}

func (r *ProfileRepository) UpsertProfile(ctx context.Context, p *campaign.Profile) (*campaign.Profile, error) {
	query := `
        INSERT INTO profiles (
            user_id, preferred_job_titles, first_name, last_name,
            phone_country_code, phone_national, contact_email, gender,
            contract_type, earliest_start, latest_end,
            min_duration_months, max_duration_months, target_zone,
            cv_document_id, context_notes, reply_to_email, access_code
        ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
        ON CONFLICT (user_id) DO UPDATE SET
            preferred_job_titles = EXCLUDED.preferred_job_titles,
            first_name = EXCLUDED.first_name,
            last_name = EXCLUDED.last_name,
            phone_country_code = EXCLUDED.phone_country_code,
            phone_national = EXCLUDED.phone_national,
            contact_email = EXCLUDED.contact_email,
            gender = EXCLUDED.gender,
            contract_type = EXCLUDED.contract_type,
            earliest_start = EXCLUDED.earliest_start,
            latest_end = EXCLUDED.latest_end,
            min_duration_months = EXCLUDED.min_duration_months,
            max_duration_months = EXCLUDED.max_duration_months,
            target_zone = EXCLUDED.target_zone,
            cv_document_id = EXCLUDED.cv_document_id,
            context_notes = EXCLUDED.context_notes,
            reply_to_email = EXCLUDED.reply_to_email,
            access_code = EXCLUDED.access_code`

	_, err := r.pool.Exec(ctx, query,
		p.UserID,
		p.PreferredJobTitles,
		p.FirstName,
		p.LastName,
		p.PhoneCountryCode,
		p.PhoneNational,
		p.ContactEmail,
		p.Gender,
		p.ContractType,
		p.EarliestStart,
		p.LatestEnd,
		p.MinDurationMonths,
		p.MaxDurationMonths,
		p.TargetZone,
		p.CVDocumentID,
		p.ContextNotes,
		p.ReplyToEmail,
		p.AccessCode,
	)
	if err != nil {
		return nil, err
	}

	return p, nil
}
