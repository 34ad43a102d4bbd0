package workflow

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire format of DATA_AGENDAMENTO.
const DateLayout = "2006-01-02"

// Bucket is the kanban column an Atendimento is shown in.
type Bucket string

const (
	BucketAguardando Bucket = "aguardando"
	BucketProntos    Bucket = "prontos"
	BucketConcluidos Bucket = "concluidos"
	BucketDeclinados Bucket = "declinados"
)

// Buckets lists the kanban columns in display order.
var Buckets = []Bucket{BucketAguardando, BucketProntos, BucketConcluidos, BucketDeclinados}

// BucketInput is the subset of an Atendimento the classifier looks at.
type BucketInput struct {
	StatusPedido      StatusPedido
	StatusAgendamento SchedulingStatus
	DataAgendamento   string
}

// timestampLayouts are the full timestamps ParseDate accepts besides a
// bare date.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
}

// ParseDate parses a scheduled date. Timestamps are accepted and truncated
// to the date as written. The result is midnight UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if len(s) > len(DateLayout) {
		if !isTimestamp(s) {
			return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
		}
		s = s[:len(DateLayout)]
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return t, nil
}

func isTimestamp(s string) bool {
	for _, layout := range timestampLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}

// Today truncates now to its UTC calendar date.
func Today(now time.Time) time.Time {
	y, m, d := now.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// IsFuture reports whether the scheduled date is strictly after today.
// A missing or unparsable date is never in the future.
func IsFuture(date string, now time.Time) bool {
	t, err := ParseDate(date)
	if err != nil {
		return false
	}
	return t.After(Today(now))
}

// InAguardando: awaiting a decision, or approved and scheduled for later.
func InAguardando(in BucketInput, now time.Time) bool {
	return in.StatusPedido == StatusAguardando ||
		(in.StatusPedido == StatusAcatado && in.StatusAgendamento != SchedulingConcluido && IsFuture(in.DataAgendamento, now))
}

// InProntos: approved, not yet executed, and due today or earlier.
func InProntos(in BucketInput, now time.Time) bool {
	return in.StatusPedido == StatusAcatado && in.StatusAgendamento != SchedulingConcluido && !IsFuture(in.DataAgendamento, now)
}

// InConcluidos: approved and executed.
func InConcluidos(in BucketInput) bool {
	return in.StatusPedido == StatusAcatado && in.StatusAgendamento == SchedulingConcluido
}

// InDeclinados: declined.
func InDeclinados(in BucketInput) bool {
	return in.StatusPedido == StatusDeclinado
}

// Classify returns the bucket of in, or "" for an unknown STATUS_PEDIDO.
func Classify(in BucketInput, now time.Time) Bucket {
	switch {
	case InDeclinados(in):
		return BucketDeclinados
	case InConcluidos(in):
		return BucketConcluidos
	case InProntos(in, now):
		return BucketProntos
	case InAguardando(in, now):
		return BucketAguardando
	}
	return ""
}
