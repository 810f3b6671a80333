package testsupport

import (
	"context"
	"testing"

	"parlo/internal/config"
	"parlo/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// Catalog indexes the fixture content seeded by SeedCatalog.
type Catalog struct {
	Topics  []*store.Topic
	Lessons map[string]*store.Lesson
}

// Lesson returns a seeded lesson by slug, failing the test when absent.
func (c *Catalog) Lesson(t testing.TB, slug string) *store.Lesson {
	t.Helper()
	lesson, ok := c.Lessons[slug]
	if !ok {
		t.Fatalf("no seeded lesson %q", slug)
	}
	return lesson
}

// SeedCatalog loads a small two-topic catalog covering every lesson type:
// topic "basics" with a vocabulary, a pronunciation, and a conversation
// lesson, then topic "travel" with a single vocabulary lesson so unlock
// cascades across topics can be exercised.
func SeedCatalog(t testing.TB, st *store.Store) *Catalog {
	t.Helper()
	ctx := context.Background()

	catalog := &Catalog{Lessons: make(map[string]*store.Lesson)}

	basics := &store.Topic{Slug: "basics", Title: "Basics", Position: 1}
	if err := st.CreateTopic(ctx, basics); err != nil {
		t.Fatalf("create topic basics: %v", err)
	}
	travel := &store.Topic{Slug: "travel", Title: "Travel", Position: 2}
	if err := st.CreateTopic(ctx, travel); err != nil {
		t.Fatalf("create topic travel: %v", err)
	}
	catalog.Topics = []*store.Topic{basics, travel}

	lessons := []*store.Lesson{
		{TopicID: basics.ID, Slug: "colors", Title: "Colors", Type: store.LessonVocabulary, Position: 1, PassingScore: 70, Active: true},
		{TopicID: basics.ID, Slug: "greetings", Title: "Greetings", Type: store.LessonPronunciation, Position: 2, PassingScore: 70, Active: true},
		{TopicID: basics.ID, Slug: "cafe", Title: "At the Cafe", Type: store.LessonConversation, Position: 3, PassingScore: 70, Active: true},
		{TopicID: travel.ID, Slug: "airport", Title: "Airport", Type: store.LessonVocabulary, Position: 1, PassingScore: 70, Active: true},
	}
	for _, lesson := range lessons {
		if err := st.CreateLesson(ctx, lesson); err != nil {
			t.Fatalf("create lesson %s: %v", lesson.Slug, err)
		}
		catalog.Lessons[lesson.Slug] = lesson
	}

	pairs := []*store.VocabularyPair{
		{LessonID: catalog.Lessons["colors"].ID, Word: "rojo", Meaning: "red", Position: 1},
		{LessonID: catalog.Lessons["colors"].ID, Word: "verde", Meaning: "green", Position: 2},
		{LessonID: catalog.Lessons["colors"].ID, Word: "azul", Meaning: "blue", Position: 3},
		{LessonID: catalog.Lessons["airport"].ID, Word: "vuelo", Meaning: "flight", Position: 1},
		{LessonID: catalog.Lessons["airport"].ID, Word: "maleta", Meaning: "suitcase", Position: 2},
	}
	for _, pair := range pairs {
		if err := st.AddVocabularyPair(ctx, pair); err != nil {
			t.Fatalf("add pair %s: %v", pair.Word, err)
		}
	}

	exercises := []*store.PronunciationExercise{
		{LessonID: catalog.Lessons["greetings"].ID, Content: "hello how are you", Phonetic: "heh-LOH", TargetScore: 70, Position: 1},
		{LessonID: catalog.Lessons["greetings"].ID, Content: "good morning", Phonetic: "gud MOR-ning", TargetScore: 70, Position: 2},
	}
	for _, exercise := range exercises {
		if err := st.AddPronunciationExercise(ctx, exercise); err != nil {
			t.Fatalf("add exercise %q: %v", exercise.Content, err)
		}
	}

	template := &store.ConversationTemplate{
		LessonID:         catalog.Lessons["cafe"].ID,
		AIRole:           "barista",
		Scenario:         "Ordering a coffee in a busy cafe",
		MinTurns:         3,
		VocabularyFocus:  []string{"coffee", "order", "please"},
		VocabularyTarget: 4,
	}
	if err := st.SetConversationTemplate(ctx, template); err != nil {
		t.Fatalf("set conversation template: %v", err)
	}

	return catalog
}
