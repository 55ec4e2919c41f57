package runner

import "github.com/me/cnvkit/pkg/model"

// dependenciesSatisfied reports whether every upstream stage of task
// succeeded. blocked is true once an upstream stage failed, was skipped,
// or is unknown; such a task can never run.
func dependenciesSatisfied(task *model.Task, byStage map[string]*model.Task) (satisfied bool, blocked bool) {
	for _, dep := range task.DependsOn {
		up, ok := byStage[dep]
		if !ok {
			return false, true
		}
		switch up.State {
		case model.TaskStateFailed, model.TaskStateSkipped:
			return false, true
		case model.TaskStateSuccess:
			continue
		default:
			return false, false
		}
	}
	return true, false
}
