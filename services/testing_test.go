package services

import (
	"sync"

	"matchsim-service/models"
)

// fakeStore 内存版 SessionStore
type fakeStore struct {
	mu            sync.Mutex
	saved         map[int64]models.SessionSnapshot
	notifications []string
	deleted       []int64
	unfinished    []models.SessionSnapshot
}

func newFakeStore() *fakeStore {
	return &fakeStore{saved: make(map[int64]models.SessionSnapshot)}
}

func (f *fakeStore) Save(snap models.SessionSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved[snap.MatchID] = snap
	return nil
}

func (f *fakeStore) FindByMatchID(matchID int64) (*models.SessionSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	snap, ok := f.saved[matchID]
	if !ok {
		return nil, models.ErrSessionNotFound
	}
	return &snap, nil
}

func (f *fakeStore) FindUnfinished() ([]models.SessionSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.SessionSnapshot(nil), f.unfinished...), nil
}

func (f *fakeStore) DeleteByMatchID(matchID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.saved, matchID)
	f.deleted = append(f.deleted, matchID)
	return nil
}

func (f *fakeStore) SaveNotification(topic string, matchID int64, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notifications = append(f.notifications, topic)
	return nil
}

func (f *fakeStore) lastSaved(matchID int64) (models.SessionSnapshot, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	snap, ok := f.saved[matchID]
	return snap, ok
}

// fakeBroadcaster 记录广播内容
type fakeBroadcaster struct {
	mu        sync.Mutex
	events    []models.MatchEvent
	snapshots []models.SessionSnapshot
}

func (f *fakeBroadcaster) BroadcastEvent(matchID int64, ev models.MatchEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
}

func (f *fakeBroadcaster) BroadcastSnapshot(matchID int64, snap models.SessionSnapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshots = append(f.snapshots, snap)
}

func (f *fakeBroadcaster) eventCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

// testTeams 固定的双方能力快照
func testTeams() (models.TeamAttributes, models.TeamAttributes) {
	build := func(teamID int64, name string, attack, defense, discipline int) models.TeamAttributes {
		team := models.TeamAttributes{
			TeamID:     teamID,
			Name:       name,
			Attack:     attack,
			Defense:    defense,
			Discipline: discipline,
		}
		for i, pos := range rosterPositions {
			team.Players = append(team.Players, models.PlayerAttributes{
				ID:         teamID*100 + int64(i),
				Name:       name + " Player",
				Position:   pos,
				Attack:     attack,
				Defense:    defense,
				Discipline: discipline,
			})
		}
		return team
	}
	home := build(1, "Home FC", 80, 60, 70)
	away := build(2, "Away United", 65, 70, 55)
	return home, away
}
