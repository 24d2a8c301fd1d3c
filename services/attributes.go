package services

import (
	"fmt"
	"math/rand"
	"sync"

	"matchsim-service/models"
)

// 阵型位置，门将必须排第一个
var rosterPositions = []string{"GK", "CB", "CB", "LB", "RB", "CDM", "CM", "CAM", "LW", "RW", "ST"}

var firstNames = []string{
	"Alex", "Marco", "Luca", "Diego", "Sergio", "Andre", "Pavel", "Jonas",
	"Emil", "Victor", "Bruno", "Rafael", "Tomas", "Karim", "Yusuf", "Dario",
}

var lastNames = []string{
	"Rossi", "Silva", "Martinez", "Keller", "Novak", "Petrov", "Larsen",
	"Costa", "Moreau", "Santos", "Weber", "Olsen", "Ferreira", "Kovac", "Bianchi", "Romano",
}

// StaticAttributeProvider 是 AttributeProvider 的内置实现：
// 按比赛 ID 确定性地生成双方能力快照并缓存。
// 真实部署中由俱乐部/球员业务服务替换。
type StaticAttributeProvider struct {
	mu    sync.Mutex
	cache map[int64][2]models.TeamAttributes
}

// NewStaticAttributeProvider 创建内置能力提供者
func NewStaticAttributeProvider() *StaticAttributeProvider {
	return &StaticAttributeProvider{
		cache: make(map[int64][2]models.TeamAttributes),
	}
}

// TeamAttributes 实现 AttributeProvider 接口
func (p *StaticAttributeProvider) TeamAttributes(matchID int64) (models.TeamAttributes, models.TeamAttributes, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if pair, ok := p.cache[matchID]; ok {
		return pair[0], pair[1], nil
	}

	rng := rand.New(rand.NewSource(matchID))
	home := generateTeam(rng, matchID*2, fmt.Sprintf("Home FC %d", matchID))
	away := generateTeam(rng, matchID*2+1, fmt.Sprintf("Away United %d", matchID))
	p.cache[matchID] = [2]models.TeamAttributes{home, away}
	return home, away, nil
}

// generateTeam 生成一支球队：队级评分 50-90，球员在队级评分附近浮动
func generateTeam(rng *rand.Rand, teamID int64, name string) models.TeamAttributes {
	team := models.TeamAttributes{
		TeamID:     teamID,
		Name:       name,
		Attack:     50 + rng.Intn(41),
		Defense:    50 + rng.Intn(41),
		Discipline: 50 + rng.Intn(41),
	}

	for i, pos := range rosterPositions {
		team.Players = append(team.Players, models.PlayerAttributes{
			ID:         teamID*100 + int64(i),
			Name:       firstNames[rng.Intn(len(firstNames))] + " " + lastNames[rng.Intn(len(lastNames))],
			Position:   pos,
			Attack:     jitter(rng, team.Attack),
			Defense:    jitter(rng, team.Defense),
			Discipline: jitter(rng, team.Discipline),
		})
	}
	return team
}

// jitter 在队级评分 ±10 范围内浮动，并截断到 [1,99]
func jitter(rng *rand.Rand, base int) int {
	v := base - 10 + rng.Intn(21)
	if v < 1 {
		v = 1
	}
	if v > 99 {
		v = 99
	}
	return v
}
