// Package directory groups messages into threads and resolves what each
// thread is about.
package directory

import (
	"sort"
	"time"

	"bookshare/model"
)

type MessageView struct {
	model.Message
	IsMine     bool   `json:"is_mine"`
	ToMe       bool   `json:"to_me"`
	AuthorName string `json:"author_name"`
}

type ThreadView struct {
	ThreadID        string         `json:"thread_id"`
	BookID          string         `json:"book_id,omitempty"`
	BookTitle       string         `json:"book_title,omitempty"`
	OwnerID         string         `json:"owner_id"`
	OwnerName       string         `json:"owner_name"`
	CounterpartID   string         `json:"counterpart_id"`
	CounterpartName string         `json:"counterpart_name"`
	IsClosed        bool           `json:"is_closed"`
	Decision        model.Decision `json:"decision,omitempty"`
	Head            MessageView    `json:"head"`
	Messages        []MessageView  `json:"messages"`
	Unread          int            `json:"unread"`
	LastAt          time.Time      `json:"last_at"`
}

// Lookup holds the records messages are cross-referenced against.
type Lookup struct {
	Books   map[string]model.Book
	Users   map[string]model.User
	Threads map[string]model.Thread
}

// SortMessages orders by created_at, then id.
func SortMessages(ms []model.Message) {
	sort.SliceStable(ms, func(i, j int) bool {
		if !ms[i].CreatedAt.Equal(ms[j].CreatedAt) {
			return ms[i].CreatedAt.Before(ms[j].CreatedAt)
		}
		return ms[i].ID < ms[j].ID
	})
}

// Group buckets msgs by effective thread id and resolves each bucket as seen
// by viewer. Threads are returned most recent first.
func Group(msgs []model.Message, viewer string, lk Lookup) []ThreadView {
	buckets := make(map[string][]model.Message)
	for _, m := range msgs {
		tid := m.EffectiveThreadID()
		buckets[tid] = append(buckets[tid], m)
	}

	out := make([]ThreadView, 0, len(buckets))
	for tid, ms := range buckets {
		out = append(out, resolve(tid, ms, viewer, lk))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastAt.Equal(out[j].LastAt) {
			return out[i].LastAt.After(out[j].LastAt)
		}
		return out[i].ThreadID < out[j].ThreadID
	})
	return out
}

func resolve(tid string, ms []model.Message, viewer string, lk Lookup) ThreadView {
	SortMessages(ms)
	head := ms[0]
	v := ThreadView{ThreadID: tid, LastAt: ms[len(ms)-1].CreatedAt}

	if th, ok := lk.Threads[tid]; ok {
		v.BookID = th.BookID
		v.OwnerID = th.OwnerID
		v.CounterpartID = th.Counterpart(viewer)
		v.IsClosed = th.IsClosed
		v.Decision = th.Decision
	} else {
		// no thread record: the head was sent by the requester to the owner
		v.OwnerID = head.RecipientID
		v.CounterpartID = head.SenderID
		if viewer == head.SenderID {
			v.CounterpartID = head.RecipientID
		}
	}
	if b, ok := lk.Books[v.BookID]; ok {
		v.BookTitle = b.Title
		if v.OwnerID == "" {
			v.OwnerID = b.OwnerID
		}
	}
	v.OwnerName = name(lk, v.OwnerID)
	v.CounterpartName = name(lk, v.CounterpartID)

	v.Messages = make([]MessageView, len(ms))
	for i, m := range ms {
		mv := MessageView{
			Message:    m,
			IsMine:     m.SenderID == viewer,
			ToMe:       m.RecipientID == viewer,
			AuthorName: name(lk, m.SenderID),
		}
		if m.IsSystem() {
			mv.AuthorName = ""
		}
		if mv.ToMe && !m.Read {
			v.Unread++
		}
		v.Messages[i] = mv
	}
	v.Head = v.Messages[0]
	return v
}

func name(lk Lookup, id string) string {
	if u, ok := lk.Users[id]; ok {
		return u.FullName()
	}
	return ""
}
