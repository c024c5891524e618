// Package agentmanager implements the Agent Manager (spec §4.3): the
// registry of per-conversation Container Agents, admission control with
// eviction under capacity pressure, and the idle reaper.
package agentmanager

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/fenwick-ai/agentrt/internal/container"
	"github.com/fenwick-ai/agentrt/internal/observability"
	"github.com/fenwick-ai/agentrt/internal/rterr"
	"github.com/fenwick-ai/agentrt/internal/workspace"
)

// Options configures the manager (spec §6 MAX_AGENTS / DEFAULT_IDLE_DEADLINE_SECONDS).
type Options struct {
	MaxAgents int

	// IdleDeadline is how long a Running agent may go unused before the
	// reaper stops it. Zero disables reaping.
	IdleDeadline time.Duration

	RuntimeRoot    string
	ContainerImage string

	Docker container.DockerClient
	Logger *observability.Logger
	Metrics *observability.Metrics
}

type entry struct {
	agent   *container.Agent
	layout  workspace.Layout
}

// Manager is the single registry of Container Agents, one per active
// conversation.
type Manager struct {
	opts Options

	mu      sync.Mutex
	entries map[string]*entry

	stopReaper chan struct{}
	reaperWG   sync.WaitGroup
}

// New constructs a Manager and starts its background reaper.
func New(opts Options) *Manager {
	if opts.MaxAgents <= 0 {
		opts.MaxAgents = 1
	}
	m := &Manager{
		opts:       opts,
		entries:    map[string]*entry{},
		stopReaper: make(chan struct{}),
	}
	m.reaperWG.Add(1)
	go m.reapLoop()
	return m
}

// Close stops the reaper. It does not shut down agents; callers that
// want a clean teardown should call ReleaseConversation for each one
// first.
func (m *Manager) Close() {
	close(m.stopReaper)
	m.reaperWG.Wait()
}

// getOrCreate returns the agent for conversationID, creating its
// workspace layout and registry entry if this is the first call. It
// never creates the underlying container eagerly; that happens lazily
// inside Agent.Execute (spec §4.2, §4.3).
func (m *Manager) getOrCreate(conversationID string) (*entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.entries[conversationID]; ok {
		return e, nil
	}

	if len(m.entries) >= m.opts.MaxAgents {
		if err := m.evictOneLocked(); err != nil {
			return nil, err
		}
	}

	layout := workspace.NewLayout(m.opts.RuntimeRoot, conversationID)
	if err := layout.Ensure(); err != nil {
		return nil, rterr.Wrap(rterr.ConfigFatal, "failed to prepare conversation workspace", err)
	}

	cfg := container.DefaultConfig(m.opts.ContainerImage, layout.WorkingDir)
	agent := container.NewAgent(conversationID, cfg, m.opts.Docker, m.opts.IdleDeadline)

	e := &entry{agent: agent, layout: layout}
	m.entries[conversationID] = e
	if m.opts.Metrics != nil {
		m.opts.Metrics.RegisteredAgents.Set(float64(len(m.entries)))
	}
	return e, nil
}

// evictOneLocked evicts the agent with the oldest last-activity among
// agents not currently Running (spec §4.3: admission control never
// evicts a Running agent — only NotCreated/Stopping/Stopped/Error
// candidates are eligible). Called with m.mu held.
func (m *Manager) evictOneLocked() error {
	type candidate struct {
		id           string
		lastActivity time.Time
	}
	var candidates []candidate
	for id, e := range m.entries {
		stats := e.agent.Stats()
		switch stats.Phase {
		case container.PhaseRunning, container.PhaseIdle, container.PhaseStarting:
			continue
		default:
			candidates = append(candidates, candidate{id: id, lastActivity: stats.LastActivity})
		}
	}
	if len(candidates) == 0 {
		return rterr.New(rterr.Transient, "agent capacity exhausted: all agents are running")
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].lastActivity.Before(candidates[j].lastActivity)
	})
	victim := candidates[0].id

	e := m.entries[victim]
	delete(m.entries, victim)
	if m.opts.Metrics != nil {
		m.opts.Metrics.AgentsEvicted.Inc()
		m.opts.Metrics.RegisteredAgents.Set(float64(len(m.entries)))
	}

	// Best-effort teardown off the lock; the agent is already gone from
	// the registry so nothing else can reach it concurrently.
	go func() {
		_ = e.agent.Shutdown(context.Background())
		_ = workspace.Remove(e.layout, false)
	}()
	return nil
}

// Execute runs a shell command for a conversation, creating the agent
// (and, lazily inside it, the container) on first use.
func (m *Manager) Execute(ctx context.Context, conversationID, command string, timeout time.Duration) (container.ExecResult, error) {
	e, err := m.getOrCreate(conversationID)
	if err != nil {
		return container.ExecResult{}, err
	}
	result, err := e.agent.Execute(ctx, command, timeout)
	if m.opts.Metrics != nil {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		m.opts.Metrics.ShellCommands.WithLabelValues(outcome).Inc()
	}
	return result, err
}

// WorkspacePath returns the host working directory of a registered
// conversation's workspace, for tool providers that need the host
// filesystem path (e.g. a file tool backed by sandboxpath). It fails for
// a conversation with no registered agent.
func (m *Manager) WorkspacePath(conversationID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[conversationID]
	if !ok {
		return "", rterr.New(rterr.ContainerLost, "no agent registered for this conversation")
	}
	return e.layout.WorkingDir, nil
}

// ReleaseConversation stops the agent and, when removeData is set,
// deletes its working and conversation-data directories; otherwise both
// stay on disk (spec §4.3 "explicit release").
func (m *Manager) ReleaseConversation(ctx context.Context, conversationID string, removeData bool) error {
	m.mu.Lock()
	e, ok := m.entries[conversationID]
	if ok {
		delete(m.entries, conversationID)
		if m.opts.Metrics != nil {
			m.opts.Metrics.RegisteredAgents.Set(float64(len(m.entries)))
		}
	}
	m.mu.Unlock()

	if !ok {
		return nil
	}
	if err := e.agent.Shutdown(ctx); err != nil {
		return err
	}
	if !removeData {
		return nil
	}
	return workspace.Remove(e.layout, true)
}

// Stat is a point-in-time view of one registered agent.
type Stat struct {
	ConversationID string
	Phase          container.Phase
	CommandCount   int
	LastActivity   time.Time
}

// Stats snapshots every registered agent.
func (m *Manager) Stats() []Stat {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Stat, 0, len(m.entries))
	for _, e := range m.entries {
		s := e.agent.Stats()
		out = append(out, Stat{
			ConversationID: s.ConversationID,
			Phase:          s.Phase,
			CommandCount:   s.CommandCount,
			LastActivity:   s.LastActivity,
		})
	}
	return out
}

const reapInterval = time.Minute

func (m *Manager) reapLoop() {
	defer m.reaperWG.Done()
	ticker := time.NewTicker(reapInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stopReaper:
			return
		case <-ticker.C:
			m.reapIdle()
		}
	}
}

// reapIdle stops agents that have been Running but unused past the
// idle deadline (spec §4.3: "periodically, e.g. once per minute"). A
// zero IdleDeadline disables reaping entirely (spec §8 boundary
// behavior). The workspace directories survive a reap; only the
// container is torn down, so the next command self-heals it.
func (m *Manager) reapIdle() {
	if m.opts.IdleDeadline <= 0 {
		return
	}

	m.mu.Lock()
	var toReap []*entry
	now := time.Now()
	for _, e := range m.entries {
		if idle, eligible := e.agent.IdleFor(now); eligible && idle > m.opts.IdleDeadline {
			toReap = append(toReap, e)
		}
	}
	m.mu.Unlock()

	for _, e := range toReap {
		if err := e.agent.Shutdown(context.Background()); err != nil {
			if m.opts.Logger != nil {
				m.opts.Logger.Warn(context.Background(), "idle reap failed", "error", err.Error())
			}
			continue
		}
		if m.opts.Metrics != nil {
			m.opts.Metrics.AgentsReaped.Inc()
		}
	}
}
