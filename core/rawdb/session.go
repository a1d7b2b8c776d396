package rawdb

// Session is a scoped transaction: operations inside are atomic on Commit,
// discarded on Discard, and guaranteed-released on every exit path — the Go
// rendering of the original's session_scope() context manager (§9 pattern
// translation: "lazy SQL session context managers -> a scoped-transaction
// abstraction").
type Session struct {
	store *ChainStore
	batch Batch
}

func newSession(store *ChainStore) *Session {
	return &Session{store: store, batch: store.db.NewBatch()}
}

// Commit durably applies every write buffered in this session.
func (s *Session) Commit() error {
	return s.batch.Commit()
}

// Discard abandons every buffered write. Safe to call after Commit (no-op).
func (s *Session) Discard() {
	s.batch.Reset()
}

// WithSession runs fn inside a Session, commits on a nil return, discards
// and propagates the error otherwise. The session is released on every exit
// path, including a panic unwinding through fn.
func WithSession(store *ChainStore, fn func(*Session) error) (err error) {
	sess := newSession(store)
	defer func() {
		if r := recover(); r != nil {
			sess.Discard()
			panic(r)
		}
	}()
	if err = fn(sess); err != nil {
		sess.Discard()
		return err
	}
	if err = sess.Commit(); err != nil {
		return err
	}
	return nil
}
