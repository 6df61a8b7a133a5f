package kyc

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"traderoom/internal/types"
)

type Service struct {
	pool *pgxpool.Pool
}

func NewService(pool *pgxpool.Pool) *Service {
	return &Service{pool: pool}
}

type Submission struct {
	FullName       string `json:"full_name"`
	DateOfBirth    string `json:"date_of_birth"`
	Country        string `json:"country"`
	DocumentType   string `json:"document_type"`
	DocumentNumber string `json:"document_number"`
	Notes          string `json:"notes"`
}

type Status struct {
	State       types.KYCStatus `json:"state"`
	CanSubmit   bool            `json:"can_submit"`
	Message     string          `json:"message"`
	SubmittedAt *time.Time      `json:"submitted_at,omitempty"`
	ReviewedAt  *time.Time      `json:"reviewed_at,omitempty"`
	RejectNote  string          `json:"reject_note,omitempty"`
}

type Request struct {
	ID             string          `json:"id"`
	UserID         string          `json:"user_id"`
	Email          string          `json:"email"`
	FullName       string          `json:"full_name"`
	DateOfBirth    string          `json:"date_of_birth"`
	Country        string          `json:"country"`
	DocumentType   string          `json:"document_type"`
	DocumentNumber string          `json:"document_number"`
	Notes          string          `json:"notes"`
	State          types.KYCStatus `json:"state"`
	SubmittedAt    time.Time       `json:"submitted_at"`
}

var allowedDocumentTypes = map[string]bool{
	"passport":        true,
	"id_card":         true,
	"driving_licence": true,
}

var ErrPendingReview = errors.New("a submission is already under review")

// Submit files a verification request. One pending request per user; an
// approved user cannot re-submit, a rejected one can.
func (s *Service) Submit(ctx context.Context, userID string, sub Submission) (string, error) {
	sub, err := validateSubmission(sub)
	if err != nil {
		return "", err
	}

	current, err := s.Current(ctx, userID)
	if err != nil {
		return "", err
	}
	switch current.State {
	case types.KYCStatusPending:
		return "", ErrPendingReview
	case types.KYCStatusApproved:
		return "", errors.New("already verified")
	}

	var id string
	err = s.pool.QueryRow(ctx,
		"insert into kyc_requests (user_id, full_name, date_of_birth, country, document_type, document_number, notes, state, submitted_at) values ($1,$2,$3,$4,$5,$6,$7,'pending',$8) returning id",
		userID, sub.FullName, sub.DateOfBirth, sub.Country, sub.DocumentType, sub.DocumentNumber, sub.Notes, time.Now().UTC(),
	).Scan(&id)
	return id, err
}

// Current returns the user's verification state derived from their latest
// request. No request at all reads as "none".
func (s *Service) Current(ctx context.Context, userID string) (Status, error) {
	var state string
	var submittedAt time.Time
	var reviewedAt *time.Time
	var rejectNote *string
	err := s.pool.QueryRow(ctx,
		"select state, submitted_at, reviewed_at, reject_note from kyc_requests where user_id = $1 order by submitted_at desc limit 1",
		userID,
	).Scan(&state, &submittedAt, &reviewedAt, &rejectNote)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Status{State: types.KYCStatusNone, CanSubmit: true, Message: "Verification has not been started"}, nil
		}
		return Status{}, err
	}

	st := Status{State: types.KYCStatus(state), SubmittedAt: &submittedAt, ReviewedAt: reviewedAt}
	if rejectNote != nil {
		st.RejectNote = *rejectNote
	}
	switch st.State {
	case types.KYCStatusPending:
		st.Message = "Verification is under review"
	case types.KYCStatusApproved:
		st.Message = "Verification approved"
	case types.KYCStatusRejected:
		st.CanSubmit = true
		st.Message = "Verification rejected; you may submit again"
	}
	return st, nil
}

// IsApproved reports whether the user has passed verification.
func (s *Service) IsApproved(ctx context.Context, userID string) (bool, error) {
	st, err := s.Current(ctx, userID)
	if err != nil {
		return false, err
	}
	return st.State == types.KYCStatusApproved, nil
}

// PendingQueue lists requests awaiting review, oldest first (admin console).
func (s *Service) PendingQueue(ctx context.Context, limit int) ([]Request, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		select k.id, k.user_id, u.email, k.full_name, k.date_of_birth, k.country, k.document_type, k.document_number, k.notes, k.state, k.submitted_at
		from kyc_requests k
		join users u on u.id = k.user_id
		where k.state = 'pending'
		order by k.submitted_at asc
		limit $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Request
	for rows.Next() {
		var req Request
		var state string
		if err := rows.Scan(&req.ID, &req.UserID, &req.Email, &req.FullName, &req.DateOfBirth, &req.Country, &req.DocumentType, &req.DocumentNumber, &req.Notes, &state, &req.SubmittedAt); err != nil {
			return nil, err
		}
		req.State = types.KYCStatus(state)
		out = append(out, req)
	}
	return out, rows.Err()
}

// Review settles a pending request. Approving or rejecting a request that is
// no longer pending fails, so two reviewers cannot double-settle one ticket.
func (s *Service) Review(ctx context.Context, requestID string, approve bool, note string) error {
	state := string(types.KYCStatusApproved)
	if !approve {
		state = string(types.KYCStatusRejected)
		if strings.TrimSpace(note) == "" {
			return errors.New("a reject note is required")
		}
	}
	tag, err := s.pool.Exec(ctx,
		"update kyc_requests set state = $1, reject_note = nullif($2, ''), reviewed_at = $3 where id = $4 and state = 'pending'",
		state, strings.TrimSpace(note), time.Now().UTC(), requestID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errors.New("request not found or already reviewed")
	}
	return nil
}

// validateSubmission normalizes and checks the submitted fields.
func validateSubmission(sub Submission) (Submission, error) {
	sub.FullName = strings.TrimSpace(sub.FullName)
	sub.Country = strings.ToUpper(strings.TrimSpace(sub.Country))
	sub.DocumentType = strings.ToLower(strings.TrimSpace(sub.DocumentType))
	sub.DocumentNumber = strings.TrimSpace(sub.DocumentNumber)
	if sub.FullName == "" || sub.DocumentNumber == "" {
		return sub, errors.New("full_name and document_number are required")
	}
	if len(sub.Country) != 2 {
		return sub, errors.New("country must be a 2-letter code")
	}
	if !allowedDocumentTypes[sub.DocumentType] {
		return sub, errors.New("document_type must be passport, id_card or driving_licence")
	}
	if _, err := time.Parse("2006-01-02", sub.DateOfBirth); err != nil {
		return sub, errors.New("date_of_birth must be YYYY-MM-DD")
	}
	return sub, nil
}
