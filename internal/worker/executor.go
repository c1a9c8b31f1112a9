package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"tts-worker-service/internal/audio"
	"tts-worker-service/internal/entity"
	"tts-worker-service/internal/faults"
	"tts-worker-service/internal/storage"
	"tts-worker-service/internal/synthesis"
)

// Synthesizer port (implementation: synthesis.Client).
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voiceID string, ctl synthesis.Controls) ([]byte, error)
}

// ArtifactStore port (implementation: storage.FileStore).
type ArtifactStore interface {
	Save(name string, data []byte) error
	Load(name string) ([]byte, error)
}

// MetadataWriter port (implementation: postgresql.MetadataRepository).
type MetadataWriter interface {
	Insert(ctx context.Context, rec *entity.MetadataRecord) error
}

// Executor runs one claimed job to a result. It returns classified errors;
// deciding between retry and terminal failure stays with the processor.
type Executor struct {
	synth     Synthesizer
	artifacts ArtifactStore
	metadata  MetadataWriter
}

func NewExecutor(synth Synthesizer, artifacts ArtifactStore, metadata MetadataWriter) *Executor {
	return &Executor{synth: synth, artifacts: artifacts, metadata: metadata}
}

func (e *Executor) Execute(ctx context.Context, job *entity.Job) (json.RawMessage, error) {
	switch job.Kind {
	case entity.KindSynthesize, entity.KindBatchItem:
		return e.executeSynthesis(ctx, job)
	case entity.KindPostProcess:
		return e.executePostProcess(ctx, job)
	default:
		return nil, fmt.Errorf("%w: unknown job kind %q", faults.ErrInvalidInput, job.Kind)
	}
}

func (e *Executor) executeSynthesis(ctx context.Context, job *entity.Job) (json.RawMessage, error) {
	var in entity.SynthesisInput
	if err := json.Unmarshal(job.Input, &in); err != nil {
		return nil, fmt.Errorf("%w: decode synthesis input: %v", faults.ErrInvalidInput, err)
	}

	start := time.Now()
	data, err := e.synth.Synthesize(ctx, in.Text, in.VoiceID, synthesis.Controls{
		Stability:       in.Stability,
		SimilarityBoost: in.SimilarityBoost,
		Emotion:         in.Emotion,
		Pitch:           in.Pitch,
		Rate:            in.Rate,
	})
	if err != nil {
		return nil, err
	}

	name := storage.NewArtifactName(in.VoiceID, in.Format)
	if err := e.artifacts.Save(name, data); err != nil {
		return nil, err
	}

	result := entity.JobResult{
		OutputFile:      name,
		Format:          in.Format,
		DurationSeconds: time.Since(start).Seconds(),
	}

	// write-once projection for history/analytics; idempotent on replay
	err = e.metadata.Insert(ctx, &entity.MetadataRecord{
		JobID:           job.ID,
		CallerID:        job.CallerID,
		Text:            in.Text,
		VoiceID:         in.VoiceID,
		Format:          in.Format,
		DurationSeconds: result.DurationSeconds,
		OutputFile:      name,
	})
	if err != nil {
		return nil, err
	}

	return marshalResult(result)
}

func (e *Executor) executePostProcess(ctx context.Context, job *entity.Job) (json.RawMessage, error) {
	var in entity.PostProcessInput
	if err := json.Unmarshal(job.Input, &in); err != nil {
		return nil, fmt.Errorf("%w: decode post-process input: %v", faults.ErrInvalidInput, err)
	}
	var fx audio.Effects
	if len(in.Effects) > 0 {
		if err := json.Unmarshal(in.Effects, &fx); err != nil {
			return nil, fmt.Errorf("%w: decode effects: %v", faults.ErrInvalidInput, err)
		}
	}

	source, err := e.artifacts.Load(in.SourceFile)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	processed, err := audio.Apply(source, fx)
	if err != nil {
		return nil, err
	}

	name := storage.NewArtifactName("processed", "wav")
	if err := e.artifacts.Save(name, processed); err != nil {
		return nil, err
	}

	return marshalResult(entity.JobResult{
		OutputFile:      name,
		Format:          "wav",
		DurationSeconds: time.Since(start).Seconds(),
	})
}

func marshalResult(result entity.JobResult) (json.RawMessage, error) {
	out, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal result: %v", faults.ErrStore, err)
	}
	return out, nil
}
