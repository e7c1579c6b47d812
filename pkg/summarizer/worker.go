// Copyright 2026 AdPilot
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
// Package summarizer runs the fire-and-forget background maintenance of
// conversation titles and summaries. Work is keyed by conversation id,
// deduplicated while in flight, and never blocks the request path.
package summarizer

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/jackhunterking/AdPilot-sub003/internal/log"
	"github.com/jackhunterking/AdPilot-sub003/pkg/observability"
	"github.com/jackhunterking/AdPilot-sub003/pkg/storage"
	"github.com/jackhunterking/AdPilot-sub003/pkg/types"
)

// TaskKind selects what the worker does for a conversation.
type TaskKind string

const (
	TaskTitle     TaskKind = "title"
	TaskSummarize TaskKind = "summarize"
)

// SummaryMetadataKey is the conversation metadata key holding the rolling
// summary.
const SummaryMetadataKey = "summary"

const (
	// DefaultThresholdTokens triggers summarization once the cumulative
	// conversation size crosses it.
	DefaultThresholdTokens = 24000

	// maxTitleRunes bounds the deterministic fallback title.
	maxTitleRunes = 48

	queueSize = 64
)

type task struct {
	kind           TaskKind
	conversationID string
}

// Config tunes the worker.
type Config struct {
	// ThresholdTokens is the cumulative size beyond which a conversation
	// gets summarized. Defaults to DefaultThresholdTokens.
	ThresholdTokens int
}

// Worker processes title and summarization tasks in the background.
type Worker struct {
	store     storage.Store
	provider  types.Provider
	tracer    observability.Tracer
	threshold int

	queue chan task

	mu       sync.Mutex
	inflight map[task]bool

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// New creates a worker. Call Start to begin processing.
func New(store storage.Store, provider types.Provider, tracer observability.Tracer, cfg Config) *Worker {
	if tracer == nil {
		tracer = observability.NewNoOpTracer()
	}
	if cfg.ThresholdTokens <= 0 {
		cfg.ThresholdTokens = DefaultThresholdTokens
	}
	return &Worker{
		store:     store,
		provider:  provider,
		tracer:    tracer,
		threshold: cfg.ThresholdTokens,
		queue:     make(chan task, queueSize),
		inflight:  make(map[task]bool),
		stopCh:    make(chan struct{}),
	}
}

// Start launches the processing loop.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.run()
}

// Stop shuts the worker down and waits for the in-flight task.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
}

// EnqueueTitle schedules title derivation for the conversation. Drops
// silently when the queue is full or the task is already in flight.
func (w *Worker) EnqueueTitle(conversationID string) {
	w.enqueue(task{kind: TaskTitle, conversationID: conversationID})
}

// EnqueueSummarize schedules a summarization size check for the
// conversation. The threshold is evaluated by the worker, off the request
// path.
func (w *Worker) EnqueueSummarize(conversationID string) {
	w.enqueue(task{kind: TaskSummarize, conversationID: conversationID})
}

func (w *Worker) enqueue(t task) {
	w.mu.Lock()
	if w.inflight[t] {
		w.mu.Unlock()
		return
	}
	w.inflight[t] = true
	w.mu.Unlock()

	select {
	case w.queue <- t:
		w.tracer.RecordEvent(context.Background(), observability.EventSummarizeEnqueued, map[string]interface{}{
			observability.AttrConversationID: t.conversationID,
			"kind":                           string(t.kind),
		})
	default:
		w.release(t)
		log.Warn("summarizer queue full, dropping task",
			zap.String("conversation_id", t.conversationID),
			zap.String("kind", string(t.kind)),
		)
	}
}

func (w *Worker) release(t task) {
	w.mu.Lock()
	delete(w.inflight, t)
	w.mu.Unlock()
}

func (w *Worker) run() {
	defer w.wg.Done()

	for {
		select {
		case t := <-w.queue:
			w.process(t)
			w.release(t)
		case <-w.stopCh:
			return
		}
	}
}

func (w *Worker) process(t task) {
	ctx := context.Background()

	var err error
	switch t.kind {
	case TaskTitle:
		err = w.deriveTitle(ctx, t.conversationID)
	case TaskSummarize:
		err = w.summarizeIfNeeded(ctx, t.conversationID)
	}
	if err != nil {
		log.Warn("summarizer task failed",
			zap.String("conversation_id", t.conversationID),
			zap.String("kind", string(t.kind)),
			zap.Error(err),
		)
	}
}

// deriveTitle asks the model for a short title, falling back to a
// deterministic truncation of the first user message. No-op when the
// conversation gained a title in the meantime.
func (w *Worker) deriveTitle(ctx context.Context, conversationID string) error {
	conv, err := w.store.GetConversation(ctx, conversationID)
	if err != nil {
		return err
	}
	if conv.Title != "" {
		return nil
	}

	turns, err := w.store.ListTurns(ctx, conversationID, 10)
	if err != nil {
		return err
	}
	if len(turns) == 0 {
		return nil
	}

	title := w.titleFromModel(ctx, turns)
	if title == "" {
		title = FallbackTitle(turns)
	}
	if title == "" {
		return nil
	}
	return w.store.SetTitle(ctx, conversationID, title)
}

func (w *Worker) titleFromModel(ctx context.Context, turns []*types.Turn) string {
	if w.provider == nil {
		return ""
	}

	prompt := types.Turn{
		Role: types.RoleUser,
		Parts: []types.Part{types.TextPart(
			"Write a title for this conversation in at most six words. Reply with the title only.\n\n" + transcript(turns),
		)},
	}
	resp, err := w.provider.Chat(ctx, []types.Turn{prompt}, nil)
	if err != nil {
		return ""
	}
	return sanitizeTitle(resp.Content)
}

// summarizeIfNeeded evaluates the cumulative size and stores a rolling
// summary in the conversation metadata once over threshold.
func (w *Worker) summarizeIfNeeded(ctx context.Context, conversationID string) error {
	turns, err := w.store.ListTurns(ctx, conversationID, 0)
	if err != nil {
		return err
	}

	size := GetTokenCounter().CountTurns(turns)
	if size < w.threshold {
		return nil
	}
	if w.provider == nil {
		return nil
	}

	prompt := types.Turn{
		Role: types.RoleUser,
		Parts: []types.Part{types.TextPart(
			"Summarize this ad-campaign planning conversation in a short paragraph, keeping decisions and open items.\n\n" + transcript(turns),
		)},
	}
	resp, err := w.provider.Chat(ctx, []types.Turn{prompt}, nil)
	if err != nil {
		return fmt.Errorf("summarization call failed: %w", err)
	}
	summary := strings.TrimSpace(resp.Content)
	if summary == "" {
		return nil
	}
	return w.store.MergeMetadata(ctx, conversationID, map[string]string{
		SummaryMetadataKey: summary,
	})
}

// FallbackTitle derives a deterministic title from the first user turn.
func FallbackTitle(turns []*types.Turn) string {
	for _, turn := range turns {
		if turn.Role != types.RoleUser {
			continue
		}
		text := strings.TrimSpace(turn.Text())
		if text == "" {
			continue
		}
		return truncateRunes(text, maxTitleRunes)
	}
	return ""
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:n])) + "…"
}

func sanitizeTitle(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"'`)
	if s == "" {
		return ""
	}
	return truncateRunes(s, maxTitleRunes)
}

func transcript(turns []*types.Turn) string {
	var b strings.Builder
	for _, turn := range turns {
		text := strings.TrimSpace(turn.Text())
		if text == "" {
			continue
		}
		b.WriteString(turn.Role)
		b.WriteString(": ")
		b.WriteString(text)
		b.WriteString("\n")
	}
	return b.String()
}
