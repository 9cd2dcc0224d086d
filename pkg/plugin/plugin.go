// Package plugin implements the cross-cutting lifecycle hook surface: a
// plugin observes every task's lifecycle without the task or the manager
// knowing anything about what it does with that observation (metrics,
// analytics, host-UI bridging). Plugins execute in registration order and
// must never be allowed to destabilize task state — a panicking hook is
// caught, logged, and otherwise ignored.
package plugin

import "github.com/marmos91/chunkflow/pkg/task"

// Manager is the subset of the Upload Manager a plugin is allowed to see at
// install time. It is satisfied by *manager.Manager; declared here instead
// of imported to avoid a plugin<->manager import cycle.
type Manager interface {
	GetTask(id string) (*task.Task, bool)
	GetAllTasks() []*task.Task
}

// Plugin is the optional lifecycle callback surface. Every method is
// optional in spirit: embed Base to no-op the hooks a plugin doesn't care
// about.
type Plugin interface {
	Install(m Manager)
	OnTaskCreated(t *task.Task)
	OnTaskStart(t *task.Task)
	OnTaskProgress(t *task.Task, p task.Progress)
	OnTaskSuccess(t *task.Task, fileURL, fileID string)
	OnTaskError(t *task.Task, err error)
	OnTaskPause(t *task.Task)
	OnTaskResume(t *task.Task)
	OnTaskCancel(t *task.Task)
}

// Base is embeddable by a concrete plugin so it only needs to implement the
// hooks it actually uses, matching the optional-callback nature of the
// lifecycle surface.
type Base struct{}

func (Base) Install(Manager)                            {}
func (Base) OnTaskCreated(*task.Task)                    {}
func (Base) OnTaskStart(*task.Task)                      {}
func (Base) OnTaskProgress(*task.Task, task.Progress)    {}
func (Base) OnTaskSuccess(*task.Task, string, string)    {}
func (Base) OnTaskError(*task.Task, error)               {}
func (Base) OnTaskPause(*task.Task)                      {}
func (Base) OnTaskResume(*task.Task)                     {}
func (Base) OnTaskCancel(*task.Task)                     {}

var _ Plugin = Base{}
