package editor

import (
	"errors"
	"testing"
	"time"

	"policyforge/internal/domain"
	"policyforge/internal/domain/models"
	"policyforge/internal/toc"
)

func sampleDraft() *models.Draft {
	return &models.Draft{
		ID: "d1",
		TOC: []models.Topic{
			{
				TopicID: "t1", Topic: "Introduction", Order: 1,
				Subtopics: []models.Subtopic{{SubtopicID: "s1", Topic: "Purpose", Order: 1}},
			},
			{TopicID: "t2", Topic: "Scope", Order: 2},
		},
	}
}

func newTestSession() *Session {
	return NewSession(sampleDraft(), time.Hour, func(string) {}, testLogger())
}

func TestSessionSelectNode(t *testing.T) {
	s := newTestSession()
	defer s.Close()

	item, err := s.SelectNode("s1")
	if err != nil {
		t.Fatalf("select failed: %v", err)
	}
	if item.Type != models.NodeTypeSubtopic || item.ParentTopicID != "t1" {
		t.Errorf("unexpected selection: %+v", item)
	}
	if s.Store().SelectedID() != "s1" {
		t.Errorf("store selection not updated")
	}

	if _, err := s.SelectNode("missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestSessionTreeDirtyTracking(t *testing.T) {
	s := newTestSession()
	defer s.Close()

	if s.TOCDirty() {
		t.Fatal("fresh session must not be dirty")
	}

	s.UpdateTree(func(tree []models.Topic) []models.Topic {
		return toc.Rename(tree, "t2", false, "Applicability")
	})
	if !s.TOCDirty() {
		t.Fatal("rename should dirty the tree")
	}

	s.MarkTreeSaved(s.Tree())
	if s.TOCDirty() {
		t.Error("marking saved should clear the dirty state")
	}
}

func TestSessionTreeReturnsCopies(t *testing.T) {
	s := newTestSession()
	defer s.Close()

	tree := s.Tree()
	tree[0].Topic = "mutated"
	if s.Tree()[0].Topic != "Introduction" {
		t.Error("Tree must return a copy, not the working slice")
	}
}

func TestRegistryGetOrCreateSharesSession(t *testing.T) {
	r := NewRegistry(time.Minute, testLogger())

	created := 0
	create := func() (*Session, error) {
		created++
		return newTestSession(), nil
	}

	first, err := r.GetOrCreate("d1", create)
	if err != nil {
		t.Fatal(err)
	}
	second, err := r.GetOrCreate("d1", create)
	if err != nil {
		t.Fatal(err)
	}
	if first != second || created != 1 {
		t.Errorf("expected one shared session, created %d", created)
	}

	got, ok := r.Get("d1")
	if !ok || got != first {
		t.Error("Get should return the live session")
	}
}

func TestRegistryRemove(t *testing.T) {
	r := NewRegistry(time.Minute, testLogger())
	if _, err := r.GetOrCreate("d1", func() (*Session, error) { return newTestSession(), nil }); err != nil {
		t.Fatal(err)
	}

	r.Remove("d1")
	if _, ok := r.Get("d1"); ok {
		t.Error("removed session still present")
	}
}
