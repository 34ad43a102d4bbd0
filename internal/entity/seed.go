package entity

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/simas-gestao/simas/internal/session"
)

// SeedData maps entity kinds to the records to load.
type SeedData map[Kind][]map[string]any

// SeedOrder is the order kinds are loaded in, so references resolve.
var SeedOrder = []Kind{KindPessoa, KindVaga, KindServidor, KindContrato, KindAlocacao, KindNomeacao, KindProtocolo}

// SeedResult reports what a seed run did per kind.
type SeedResult struct {
	Created map[Kind]int
	Skipped map[Kind]int
}

// ParseSeed reads a YAML seed document keyed by entity kind:
//
//	Pessoa:
//	  - CPF: "52998224725"
//	    NOME: Ana
func ParseSeed(r io.Reader) (SeedData, error) {
	var data SeedData
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&data); err != nil {
		if err == io.EOF {
			return SeedData{}, nil
		}
		return nil, fmt.Errorf("parsing seed file: %w", err)
	}
	for kind := range data {
		if !isSeedKind(kind) {
			return nil, fmt.Errorf("parsing seed file: entidade %q não pode ser carregada", kind)
		}
	}
	return data, nil
}

// Total returns the number of records in data that Seed would visit.
func (d SeedData) Total() int {
	n := 0
	for _, kind := range SeedOrder {
		n += len(d[kind])
	}
	return n
}

// Seed loads lookup data through the audited create path. Records whose
// primary key already exists are skipped, so reruns are harmless. progress
// is called once per visited record.
func (s *Store) Seed(ctx context.Context, sess session.Session, data SeedData, progress func()) (SeedResult, error) {
	res := SeedResult{Created: map[Kind]int{}, Skipped: map[Kind]int{}}
	for kind := range data {
		if !isSeedKind(kind) {
			return res, fmt.Errorf("seeding: entidade %q não pode ser carregada", kind)
		}
	}

	for _, kind := range SeedOrder {
		def := MustLookup(kind)
		for i, raw := range data[kind] {
			err := s.Do(ctx, sess, func(r *Repo) error {
				if id, ok := raw[def.PrimaryKey]; ok && id != nil {
					exists, err := r.Exists(ctx, kind, fmt.Sprint(id))
					if err != nil {
						return err
					}
					if exists {
						res.Skipped[kind]++
						return nil
					}
				}
				if _, err := r.Create(ctx, kind, raw); err != nil {
					return err
				}
				res.Created[kind]++
				return nil
			})
			if err != nil {
				return res, fmt.Errorf("seeding %s #%d: %w", kind, i+1, err)
			}
			if progress != nil {
				progress()
			}
		}
	}

	s.logger.Info("seed finished",
		zap.Any("created", res.Created),
		zap.Any("skipped", res.Skipped))
	return res, nil
}

func isSeedKind(kind Kind) bool {
	for _, k := range SeedOrder {
		if k == kind {
			return true
		}
	}
	return false
}
