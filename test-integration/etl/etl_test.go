//go:build integration

package integration

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/stacklok/movies-etl/internal/checkpoint"
	"github.com/stacklok/movies-etl/internal/db/sqlc"
	"github.com/stacklok/movies-etl/internal/document"
	"github.com/stacklok/movies-etl/internal/index"
	"github.com/stacklok/movies-etl/internal/retry"
	"github.com/stacklok/movies-etl/internal/source"
	etlsync "github.com/stacklok/movies-etl/internal/sync"
	"github.com/stacklok/movies-etl/test-integration/etl/helpers"
)

const indexName = "movies"

var base = time.Date(2021, 6, 16, 20, 14, 9, 0, time.UTC)

func fastPolicy() *retry.Policy {
	return &retry.Policy{
		InitialInterval: 5 * time.Millisecond,
		Multiplier:      2,
		MaxInterval:     50 * time.Millisecond,
		MaxAttempts:     3,
	}
}

func decode(raw json.RawMessage) document.Document {
	var doc document.Document
	Expect(json.Unmarshal(raw, &doc)).To(Succeed())
	return doc
}

var _ = Describe("Sync loop", Label("etl"), Ordered, func() {
	var (
		tempDir   string
		cluster   *helpers.FakeCluster
		content   *helpers.Content
		store     checkpoint.Store
		newLoop   func(pageSize, batchSize int) *etlsync.Loop
		trek      uuid.UUID
		wars      uuid.UUID
		alice     uuid.UUID
		scifi     uuid.UUID
		schemaRaw = `{
			// settings and mappings used for the movies index
			"settings": {"refresh_interval": "1s"},
			"mappings": {"dynamic": "strict", "properties": {"title": {"type": "text"},}},
		}`
	)

	BeforeAll(func() {
		tempDir = createTempDir("etl-test-")
		cluster = helpers.NewFakeCluster()
		content = helpers.NewContent(pool)
		Expect(content.Reset(ctx)).To(Succeed())

		schemaFile := filepath.Join(tempDir, "es_schema.json")
		Expect(os.WriteFile(schemaFile, []byte(schemaRaw), 0o600)).To(Succeed())

		var err error
		store, err = checkpoint.NewStore(ctx, checkpoint.BackendFile, filepath.Join(tempDir, "state.json"))
		Expect(err).NotTo(HaveOccurred())

		newLoop = func(pageSize, batchSize int) *etlsync.Loop {
			reader, err := source.NewReader(sqlc.New(pool),
				source.WithPageSize(pageSize), source.WithRetryPolicy(fastPolicy()))
			Expect(err).NotTo(HaveOccurred())

			client, err := index.NewElasticsearchClient(index.ClientConfig{Address: cluster.URL()})
			Expect(err).NotTo(HaveOccurred())
			loader, err := index.NewWriter(client, indexName,
				index.WithBatchSize(batchSize),
				index.WithSchemaFile(schemaFile),
				index.WithRetryPolicy(fastPolicy()))
			Expect(err).NotTo(HaveOccurred())

			loop, err := etlsync.NewLoop(store, reader, loader, etlsync.WithOwner("integration"))
			Expect(err).NotTo(HaveOccurred())
			return loop
		}

		By("seeding the content database")
		trek, err = content.Film(ctx, "Star Trek", 7.9, base)
		Expect(err).NotTo(HaveOccurred())
		wars, err = content.Film(ctx, "Star Wars", 8.6, base.Add(time.Second))
		Expect(err).NotTo(HaveOccurred())
		alice, err = content.Person(ctx, "Alice Doe", base)
		Expect(err).NotTo(HaveOccurred())
		bob, err := content.Person(ctx, "Bob Roe", base)
		Expect(err).NotTo(HaveOccurred())
		scifi, err = content.Genre(ctx, "Sci-Fi", base)
		Expect(err).NotTo(HaveOccurred())

		Expect(content.Cast(ctx, trek, alice, document.RoleDirector)).To(Succeed())
		Expect(content.Cast(ctx, trek, alice, document.RoleActor)).To(Succeed())
		Expect(content.Cast(ctx, trek, bob, document.RoleWriter)).To(Succeed())
		Expect(content.Cast(ctx, wars, bob, document.RoleActor)).To(Succeed())
		Expect(content.Tag(ctx, trek, scifi)).To(Succeed())
		Expect(content.Tag(ctx, wars, scifi)).To(Succeed())
	})

	AfterAll(func() {
		if store != nil {
			_ = store.Close()
		}
		cluster.Close()
		cleanupTempDir(tempDir)
	})

	It("creates the index and publishes every film", func() {
		Expect(newLoop(100, 1).RunOnce(ctx)).To(Succeed())

		Expect(string(cluster.Mapping(indexName))).To(MatchJSON(`{"settings":{"refresh_interval":"1s"},"mappings":{"dynamic":"strict","properties":{"title":{"type":"text"}}}}`))

		docs := cluster.Documents(indexName)
		Expect(docs).To(HaveLen(2))
		Expect(cluster.BulkRequests()).To(Equal(2))

		doc := decode(docs[trek.String()])
		Expect(doc.Title).To(Equal("Star Trek"))
		Expect(doc.Director).To(Equal([]string{"Alice Doe"}))
		Expect(doc.ActorsNames).To(Equal([]string{"Alice Doe"}))
		Expect(doc.WritersNames).To(Equal([]string{"Bob Roe"}))
		Expect(doc.Genre).To(Equal([]string{"Sci-Fi"}))
		Expect(doc.Actors).To(Equal([]document.Person{{ID: alice, Name: "Alice Doe"}}))

		cp, err := store.Load(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(cp.RunState).To(Equal(checkpoint.RunStateIdle))
		Expect(cp.Watermarks.Get(checkpoint.StreamFilmwork)).To(BeTemporally("==", base.Add(time.Second)))
		Expect(cp.Watermarks.Get(checkpoint.StreamPerson)).To(BeTemporally("==", base))
		Expect(cp.Watermarks.Get(checkpoint.StreamGenre)).To(BeTemporally("==", base))
	})

	It("publishes nothing when nothing changed", func() {
		before := cluster.BulkRequests()
		Expect(newLoop(100, 100).RunOnce(ctx)).To(Succeed())
		Expect(cluster.BulkRequests()).To(Equal(before))
	})

	It("re-publishes only the films of a renamed person", func() {
		Expect(content.RenamePerson(ctx, alice, "Alice Smith", base.Add(time.Hour))).To(Succeed())
		warsBefore := cluster.Documents(indexName)[wars.String()]

		Expect(newLoop(100, 100).RunOnce(ctx)).To(Succeed())

		docs := cluster.Documents(indexName)
		Expect(decode(docs[trek.String()]).Director).To(Equal([]string{"Alice Smith"}))
		Expect(string(docs[wars.String()])).To(MatchJSON(string(warsBefore)))

		cp, err := store.Load(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(cp.Watermarks.Get(checkpoint.StreamPerson)).To(BeTemporally("==", base.Add(time.Hour)))
	})

	It("keeps the watermarks when a document is rejected and recovers on the next run", func() {
		dune, err := content.Film(ctx, "Dune", 8.0, base.Add(2*time.Hour))
		Expect(err).NotTo(HaveOccurred())
		Expect(content.Tag(ctx, dune, scifi)).To(Succeed())

		cluster.RejectDocument(dune.String())
		err = newLoop(100, 100).RunOnce(ctx)
		Expect(err).To(MatchError(index.ErrPartialBulk))

		var stageErr *etlsync.Error
		Expect(err).To(BeAssignableToTypeOf(stageErr))

		cp, err := store.Load(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(cp.RunState).To(Equal(checkpoint.RunStateStopped))
		Expect(cp.Watermarks.Get(checkpoint.StreamFilmwork)).To(BeTemporally("==", base.Add(time.Second)))

		cluster.RejectDocument("")
		Expect(newLoop(100, 100).RunOnce(ctx)).To(Succeed())
		Expect(decode(cluster.Documents(indexName)[dune.String()]).Title).To(Equal("Dune"))

		cp, err = store.Load(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(cp.Watermarks.Get(checkpoint.StreamFilmwork)).To(BeTemporally("==", base.Add(2*time.Hour)))
	})

	It("refuses to run while another process holds the run guard", func() {
		other, err := checkpoint.NewStore(ctx, checkpoint.BackendFile, filepath.Join(tempDir, "state.json"))
		Expect(err).NotTo(HaveOccurred())
		defer func() { _ = other.Close() }()
		Expect(other.AcquireRun(ctx, "other")).To(Succeed())

		before, err := store.Load(ctx)
		Expect(err).NotTo(HaveOccurred())

		err = newLoop(100, 100).RunOnce(ctx)
		Expect(err).To(MatchError(checkpoint.ErrAlreadyRunning))

		after, err := store.Load(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(after.Watermarks).To(Equal(before.Watermarks))
		Expect(after.Owner).To(Equal("other"))

		Expect(other.ReleaseRun(ctx, checkpoint.RunStateIdle)).To(Succeed())
	})
})
