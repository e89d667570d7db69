// Package document flattens the film/person/genre join into one search document per film.
package document

import (
	"errors"
	"fmt"
	"iter"

	"github.com/google/uuid"
)

// Person roles recognized when classifying join rows
const (
	RoleDirector = "director"
	RoleActor    = "actor"
	RoleWriter   = "writer"
)

// ErrMissingTitle is yielded for a film whose rows carry no title
var ErrMissingTitle = errors.New("film has no title")

// JoinRow is one row of the film detail join: a film paired with at most one
// person credit and at most one genre. Person and genre columns are empty when the
// LEFT JOIN found nothing.
type JoinRow struct {
	FilmworkID  uuid.UUID
	Title       *string
	Description *string
	Rating      *float64
	Role        string
	PersonID    uuid.UUID
	PersonName  string
	Genre       string
}

// Person is an {id, name} pair in the actors and writers lists
type Person struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// Document is the search document published for one film
type Document struct {
	ID           uuid.UUID `json:"id"`
	IMDBRating   *float64  `json:"imdb_rating"`
	Genre        []string  `json:"genre"`
	Title        string    `json:"title"`
	Description  *string   `json:"description"`
	Director     []string  `json:"director"`
	ActorsNames  []string  `json:"actors_names"`
	WritersNames []string  `json:"writers_names"`
	Actors       []Person  `json:"actors"`
	Writers      []Person  `json:"writers"`
}

// DocumentID returns the id the document is indexed under
func (d *Document) DocumentID() string {
	return d.ID.String()
}

// accumulator collects the distinct values of one film's rows
type accumulator struct {
	doc          Document
	missingTitle bool
	seen         map[string]struct{}
}

func newAccumulator(id uuid.UUID) *accumulator {
	return &accumulator{
		doc: Document{
			ID:           id,
			Genre:        []string{},
			Director:     []string{},
			ActorsNames:  []string{},
			WritersNames: []string{},
			Actors:       []Person{},
			Writers:      []Person{},
		},
		seen: make(map[string]struct{}),
	}
}

// once reports whether key is seen for the first time
func (a *accumulator) once(key string) bool {
	if _, ok := a.seen[key]; ok {
		return false
	}
	a.seen[key] = struct{}{}
	return true
}

func (a *accumulator) add(row *JoinRow) {
	if row.Title == nil {
		a.missingTitle = true
	} else if a.doc.Title == "" {
		a.doc.Title = *row.Title
	}
	if a.doc.Description == nil && row.Description != nil {
		a.doc.Description = row.Description
	}
	if a.doc.IMDBRating == nil && row.Rating != nil {
		a.doc.IMDBRating = row.Rating
	}

	if row.Genre != "" && a.once("g\x00"+row.Genre) {
		a.doc.Genre = append(a.doc.Genre, row.Genre)
	}

	if row.PersonID == uuid.Nil || row.PersonName == "" {
		return
	}
	pair := Person{ID: row.PersonID, Name: row.PersonName}

	switch row.Role {
	case RoleDirector:
		if a.once("d\x00" + pair.Name) {
			a.doc.Director = append(a.doc.Director, pair.Name)
		}
	case RoleActor:
		if a.once("an\x00" + pair.Name) {
			a.doc.ActorsNames = append(a.doc.ActorsNames, pair.Name)
		}
		if a.once("ap\x00" + pair.ID.String() + "\x00" + pair.Name) {
			a.doc.Actors = append(a.doc.Actors, pair)
		}
	case RoleWriter:
		if a.once("wn\x00" + pair.Name) {
			a.doc.WritersNames = append(a.doc.WritersNames, pair.Name)
		}
		if a.once("wp\x00" + pair.ID.String() + "\x00" + pair.Name) {
			a.doc.Writers = append(a.doc.Writers, pair)
		}
	}
}

// Transform groups rows by film and yields one document per film, in the order
// films first appear in rows. A film missing its title yields ErrMissingTitle.
// The sequence can be ranged over more than once.
func Transform(rows []JoinRow) iter.Seq2[Document, error] {
	return func(yield func(Document, error) bool) {
		groups := make(map[uuid.UUID]*accumulator)
		var order []uuid.UUID

		for i := range rows {
			row := &rows[i]
			acc, ok := groups[row.FilmworkID]
			if !ok {
				acc = newAccumulator(row.FilmworkID)
				groups[row.FilmworkID] = acc
				order = append(order, row.FilmworkID)
			}
			acc.add(row)
		}

		for _, id := range order {
			acc := groups[id]
			if acc.missingTitle {
				if !yield(Document{ID: id}, fmt.Errorf("film %s: %w", id, ErrMissingTitle)) {
					return
				}
				continue
			}
			if !yield(acc.doc, nil) {
				return
			}
		}
	}
}

// Collect drains a transform into a slice, stopping at the first error
func Collect(docs iter.Seq2[Document, error]) ([]Document, error) {
	var out []Document
	for doc, err := range docs {
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, nil
}
