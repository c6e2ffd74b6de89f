package messagerepo

import (
	"context"
	"time"

	"bookshare/model"
	"bookshare/util/database"
)

// Proposal is the latest proposed window of an open, undecided thread.
type Proposal struct {
	ThreadID  string       `json:"thread_id"`
	BookID    string       `json:"book_id"`
	Window    model.Window `json:"window"`
	CreatedAt time.Time    `json:"created_at"`
}

type Repo interface {
	Insert(ctx context.Context, m *model.Message) error
	ByID(ctx context.Context, id string) (*model.Message, error)
	// ByThread returns the messages of a thread, including a legacy head whose
	// own id is the thread id, ordered by created_at then id.
	ByThread(ctx context.Context, threadID string) ([]model.Message, error)
	ForUser(ctx context.Context, userID string) ([]model.Message, error)
	MarkRead(ctx context.Context, id, recipientID string) error
	LatestProposal(ctx context.Context, threadID string) (*model.Message, error)
	// OpenProposals lists the latest proposal of each open, undecided thread,
	// optionally restricted to bookIDs.
	OpenProposals(ctx context.Context, bookIDs ...string) ([]Proposal, error)
}

type repo struct{ db *database.DB }

func New(db *database.DB) Repo { return &repo{db} }

const msgCols = `m.id, m.sender_id, m.recipient_id, m.body, m.kind, m.event, m.window_from, m.window_to, m.thread_id, m.read, m.created_at`

type scanner interface{ Scan(dest ...any) error }

func scanMessage(row scanner) (model.Message, error) {
	var (
		m          model.Message
		kind, ev   *string
		wFrom, wTo *time.Time
	)
	if err := row.Scan(&m.ID, &m.SenderID, &m.RecipientID, &m.Body, &kind, &ev,
		&wFrom, &wTo, &m.ThreadID, &m.Read, &m.CreatedAt); err != nil {
		return m, err
	}
	if kind == nil {
		// rows written before the kind column existed
		k, e, w, body := model.ParseLegacyBody(m.Body)
		m.Kind, m.Event, m.Window, m.Body = k, e, w, body
		return m, nil
	}
	m.Kind = model.MessageKind(*kind)
	if ev != nil {
		m.Event = model.Event(*ev)
	}
	if wFrom != nil || wTo != nil {
		m.Window = &model.Window{From: wFrom, To: wTo}
	}
	return m, nil
}

func (r *repo) Insert(ctx context.Context, m *model.Message) error {
	const q = `
INSERT INTO messages (id, sender_id, recipient_id, body, kind, event, window_from, window_to, thread_id, read, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,FALSE,$10)`
	var ev *string
	if m.Event != "" {
		s := string(m.Event)
		ev = &s
	}
	var wFrom, wTo *time.Time
	if m.Window != nil {
		wFrom, wTo = m.Window.From, m.Window.To
	}
	_, err := r.db.Pool.Exec(ctx, q,
		m.ID, m.SenderID, m.RecipientID, m.Body, string(m.Kind), ev,
		wFrom, wTo, m.ThreadID, m.CreatedAt,
	)
	return database.MapErr(err)
}

func (r *repo) ByID(ctx context.Context, id string) (*model.Message, error) {
	m, err := scanMessage(r.db.Pool.QueryRow(ctx, `SELECT `+msgCols+` FROM messages m WHERE m.id = $1`, id))
	if err != nil {
		return nil, database.MapErr(err)
	}
	return &m, nil
}

func (r *repo) ByThread(ctx context.Context, threadID string) ([]model.Message, error) {
	const q = `
SELECT ` + msgCols + `
FROM messages m
WHERE m.thread_id = $1 OR (m.id = $1 AND m.thread_id IS NULL)
ORDER BY m.created_at ASC, m.id ASC`
	return r.query(ctx, q, threadID)
}

func (r *repo) ForUser(ctx context.Context, userID string) ([]model.Message, error) {
	const q = `
SELECT ` + msgCols + `
FROM messages m
WHERE m.sender_id = $1 OR m.recipient_id = $1
ORDER BY m.created_at ASC, m.id ASC`
	return r.query(ctx, q, userID)
}

func (r *repo) query(ctx context.Context, q string, args ...any) ([]model.Message, error) {
	rows, err := r.db.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, database.MapErr(err)
	}
	defer rows.Close()

	var out []model.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, database.MapErr(rows.Err())
}

func (r *repo) MarkRead(ctx context.Context, id, recipientID string) error {
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE messages SET read = TRUE WHERE id = $1 AND recipient_id = $2`, id, recipientID)
	if err != nil {
		return database.MapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return database.ErrNotFound
	}
	return nil
}

func (r *repo) LatestProposal(ctx context.Context, threadID string) (*model.Message, error) {
	const q = `
SELECT ` + msgCols + `
FROM messages m
WHERE m.thread_id = $1 AND m.kind = 'system' AND m.event = 'proposal'
ORDER BY m.created_at DESC, m.id DESC
LIMIT 1`
	m, err := scanMessage(r.db.Pool.QueryRow(ctx, q, threadID))
	if err != nil {
		return nil, database.MapErr(err)
	}
	return &m, nil
}

func (r *repo) OpenProposals(ctx context.Context, bookIDs ...string) ([]Proposal, error) {
	q := `
SELECT DISTINCT ON (t.id) t.id, t.book_id, m.window_from, m.window_to, m.created_at
FROM threads t
JOIN messages m ON m.thread_id = t.id::text
WHERE NOT t.is_closed
  AND t.decision IS NULL
  AND m.kind = 'system' AND m.event = 'proposal'`
	args := []any{}
	if len(bookIDs) > 0 {
		q += ` AND t.book_id = ANY($1::uuid[])`
		args = append(args, bookIDs)
	}
	q += `
ORDER BY t.id, m.created_at DESC, m.id DESC`

	rows, err := r.db.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, database.MapErr(err)
	}
	defer rows.Close()

	var out []Proposal
	for rows.Next() {
		var p Proposal
		if err := rows.Scan(&p.ThreadID, &p.BookID, &p.Window.From, &p.Window.To, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, database.MapErr(rows.Err())
}
