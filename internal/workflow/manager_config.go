package workflow

import "comicdl/internal/queue"

// ConfigureStages registers the concrete stage handlers the workflow will run.
func (m *Manager) ConfigureStages(set StageSet) {
	lane := &laneState{name: "post-processing"}

	archiveStarts := []queue.Status{queue.StatusDownloaded, queue.StatusWatermarked}
	if set.Watermark != nil {
		lane.stages = append(lane.stages, pipelineStage{
			name:             "watermark",
			handler:          set.Watermark,
			startStatuses:    []queue.Status{queue.StatusDownloaded},
			processingStatus: queue.StatusWatermarking,
			doneStatus:       queue.StatusWatermarked,
		})
		archiveStarts = []queue.Status{queue.StatusWatermarked}
	}
	if set.Archive != nil {
		lane.stages = append(lane.stages, pipelineStage{
			name:             "archive",
			handler:          set.Archive,
			startStatuses:    archiveStarts,
			processingStatus: queue.StatusArchiving,
			doneStatus:       queue.StatusCompleted,
		})
	}
	lane.finalize()

	m.mu.Lock()
	m.lane = lane
	m.mu.Unlock()
}
