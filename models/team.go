package models

// PlayerAttributes 球员能力快照，由外部协作方提供
type PlayerAttributes struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Position   string `json:"position"`
	Attack     int    `json:"attack"`
	Defense    int    `json:"defense"`
	Discipline int    `json:"discipline"` // 越高越守纪律，吃牌越少
}

// TeamAttributes 球队能力快照，每次时钟 tick 前刷新
type TeamAttributes struct {
	TeamID     int64              `json:"team_id"`
	Name       string             `json:"name"`
	Attack     int                `json:"attack"`
	Defense    int                `json:"defense"`
	Discipline int                `json:"discipline"`
	Players    []PlayerAttributes `json:"players"`
}

// Valid 能力值是否在合法区间内
func (t TeamAttributes) Valid() bool {
	inRange := func(v int) bool { return v >= 0 && v <= 100 }
	return inRange(t.Attack) && inRange(t.Defense) && inRange(t.Discipline)
}
