package workflow

import (
	"log/slog"

	"comicdl/internal/queue"
	"comicdl/internal/stage"
)

// StageSet bundles the concrete handlers the manager orchestrates. A nil
// Watermark skips watermark removal.
type StageSet struct {
	Watermark stage.Handler
	Archive   stage.Handler
}

type pipelineStage struct {
	name             string
	handler          stage.Handler
	startStatuses    []queue.Status
	processingStatus queue.Status
	doneStatus       queue.Status
}

type laneState struct {
	name               string
	stages             []pipelineStage
	statusOrder        []queue.Status
	stageByStart       map[queue.Status]pipelineStage
	processingStatuses []queue.Status
	logger             *slog.Logger
}

func (l *laneState) finalize() {
	if l == nil {
		return
	}
	l.stageByStart = make(map[queue.Status]pipelineStage, len(l.stages))
	l.statusOrder = l.statusOrder[:0]
	l.processingStatuses = l.processingStatuses[:0]
	seenProcessing := make(map[queue.Status]struct{})
	for _, stg := range l.stages {
		for _, start := range stg.startStatuses {
			l.stageByStart[start] = stg
			l.statusOrder = append(l.statusOrder, start)
		}
		if stg.processingStatus != "" {
			if _, ok := seenProcessing[stg.processingStatus]; !ok {
				l.processingStatuses = append(l.processingStatuses, stg.processingStatus)
				seenProcessing[stg.processingStatus] = struct{}{}
			}
		}
	}
}

func (l *laneState) stageForStatus(status queue.Status) (pipelineStage, bool) {
	if l == nil {
		return pipelineStage{}, false
	}
	stg, ok := l.stageByStart[status]
	return stg, ok
}
