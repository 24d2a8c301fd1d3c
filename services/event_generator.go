package services

import (
	"fmt"
	"math/rand"
	"time"

	"matchsim-service/models"
)

// EventGenerator 决定某个模拟分钟是否产生比赛事件、产生哪种事件。
// 权重公式（来源材料未给出原始公式，这里采用线性攻防差加权并在此记录）：
//   - 进球类权重 ∝ 进攻方攻击力 − 对方防守力（截断到最小值）
//   - 犯规/吃牌类权重 ∝ 100 − 纪律值
//   - 受伤为固定低基线，换人从第 55 分钟起开放
// 概率全部为 [0,1] 浮点数；同一随机种子下序列完全可复现。
type EventGenerator struct {
	// BaseProbability 每分钟基础事件概率，会被会话强度和攻防差调制
	BaseProbability float64

	// MaxRerolls 校验失败（如红牌给了已被罚下的球员）时的重掷次数上限
	MaxRerolls int
}

// NewEventGenerator 创建事件生成器
func NewEventGenerator(baseProbability float64) *EventGenerator {
	if baseProbability <= 0 || baseProbability > 1 {
		baseProbability = 0.18
	}
	return &EventGenerator{
		BaseProbability: baseProbability,
		MaxRerolls:      5,
	}
}

// 换人窗口开始分钟
const substitutionFrom = 55

// eventWeight 加权表的一项
type eventWeight struct {
	typ    models.EventType
	weight float64
}

// generate 在会话锁内调用，最多产生一条事件。
// 概率只依赖会话分钟、强度和球队能力，与真实时间无关。
func (g *EventGenerator) generate(st *sessionState, home, away models.TeamAttributes, now time.Time) (*models.MatchEvent, error) {
	if !home.Valid() || !away.Valid() {
		return nil, fmt.Errorf("%w: home=%+v away=%+v", models.ErrInvalidAttributes, teamRatings(home), teamRatings(away))
	}

	rng := st.rng

	// 1. 基础概率：强度调制 + 双方攻防差
	diff := float64(home.Attack-away.Defense) + float64(away.Attack-home.Defense)
	p := g.BaseProbability * st.intensity * (1 + diff/400)
	p = clamp(p, 0.02, 0.6)

	// 2. 均匀抽样决定本分钟是否有事件
	if rng.Float64() >= p {
		return nil, nil
	}

	// 3. 选类型、选归属方，失败则重掷
	for attempt := 0; attempt <= g.MaxRerolls; attempt++ {
		ev := g.roll(st, home, away, rng, now)
		if ev == nil {
			continue
		}
		// 红牌给已被罚下的球员：拒绝并重掷
		if ev.Type == models.EventRedCard && ev.PlayerID != nil && st.sentOff[*ev.PlayerID] {
			continue
		}
		return ev, nil
	}
	return nil, nil
}

// roll 掷一次加权表
func (g *EventGenerator) roll(st *sessionState, home, away models.TeamAttributes, rng *rand.Rand, now time.Time) *models.MatchEvent {
	// 进攻潜力：攻击力减对方防守力，下限 5 保证弱队也有机会
	homeAtk := attackFactor(home, away)
	awayAtk := attackFactor(away, home)
	atk := (homeAtk + awayAtk) / 2

	// 失纪律程度决定犯规和吃牌权重
	indiscipline := (float64(100-home.Discipline) + float64(100-away.Discipline)) / 2

	weights := []eventWeight{
		{models.EventGoal, 0.16 * atk},
		{models.EventGoalFreeKick, 0.04 * atk},
		{models.EventShotMissed, 0.30 * atk},
		{models.EventCorner, 16},
		{models.EventFoul, 0.20 * indiscipline},
		{models.EventYellowCard, 0.09 * indiscipline},
		{models.EventRedCard, 0.015 * indiscipline},
		{models.EventInjury, 2},
	}
	if st.minute >= substitutionFrom {
		weights = append(weights, eventWeight{models.EventSubstitution, 6})
	}

	typ, ok := pickType(weights, rng)
	if !ok {
		return nil
	}

	side := g.pickSide(typ, home, away, rng)
	team := home
	if side == models.SideAway {
		team = away
	}
	player := pickPlayer(typ, team, st.sentOff, rng)

	ev := &models.MatchEvent{
		Minute:    st.displayMinute(),
		Type:      typ,
		Side:      side,
		CreatedAt: now,
	}
	if player != nil {
		id := player.ID
		ev.PlayerID = &id
		ev.PlayerName = player.Name
	}
	ev.Description = describe(typ, team.Name, ev.PlayerName)
	return ev
}

// pickSide 选择事件归属方：进球类按相对攻击力加权，
// 犯规/吃牌按失纪律程度加权，其余五五开，权重相同则等价于均匀随机。
func (g *EventGenerator) pickSide(typ models.EventType, home, away models.TeamAttributes, rng *rand.Rand) models.Side {
	var homeWeight, awayWeight float64
	switch typ {
	case models.EventGoal, models.EventGoalFreeKick, models.EventShotMissed, models.EventCorner:
		homeWeight = attackFactor(home, away)
		awayWeight = attackFactor(away, home)
	case models.EventFoul, models.EventYellowCard, models.EventRedCard:
		homeWeight = float64(100 - home.Discipline)
		awayWeight = float64(100 - away.Discipline)
	default:
		homeWeight, awayWeight = 1, 1
	}
	total := homeWeight + awayWeight
	if total <= 0 {
		homeWeight, awayWeight, total = 1, 1, 2
	}
	if rng.Float64()*total < homeWeight {
		return models.SideHome
	}
	return models.SideAway
}

// pickPlayer 从一方名单里均匀选一名球员。进球不会选门将，
// 任何类型都不会选已被罚下的球员。
func pickPlayer(typ models.EventType, team models.TeamAttributes, sentOff map[int64]bool, rng *rand.Rand) *models.PlayerAttributes {
	candidates := make([]models.PlayerAttributes, 0, len(team.Players))
	for _, p := range team.Players {
		if sentOff[p.ID] {
			continue
		}
		if typ.Scoring() && p.Position == "GK" {
			continue
		}
		candidates = append(candidates, p)
	}
	if len(candidates) == 0 {
		return nil
	}
	p := candidates[rng.Intn(len(candidates))]
	return &p
}

// pickType 按权重抽取事件类型
func pickType(weights []eventWeight, rng *rand.Rand) (models.EventType, bool) {
	total := 0.0
	for _, w := range weights {
		if w.weight > 0 {
			total += w.weight
		}
	}
	if total <= 0 {
		return "", false
	}
	r := rng.Float64() * total
	acc := 0.0
	for _, w := range weights {
		if w.weight <= 0 {
			continue
		}
		acc += w.weight
		if r < acc {
			return w.typ, true
		}
	}
	return weights[len(weights)-1].typ, true
}

// attackFactor 攻防差加权，下限 5
func attackFactor(attacking, defending models.TeamAttributes) float64 {
	f := float64(attacking.Attack - defending.Defense + 50)
	if f < 5 {
		f = 5
	}
	return f
}

func clamp(v, low, high float64) float64 {
	if v < low {
		return low
	}
	if v > high {
		return high
	}
	return v
}

func teamRatings(t models.TeamAttributes) string {
	return fmt.Sprintf("atk=%d def=%d disc=%d", t.Attack, t.Defense, t.Discipline)
}

// describe 生成事件描述文案
func describe(typ models.EventType, teamName, playerName string) string {
	who := teamName
	if playerName != "" {
		who = playerName
	}
	switch typ {
	case models.EventGoal:
		return fmt.Sprintf("GOAL! %s scores for %s!", who, teamName)
	case models.EventGoalFreeKick:
		return fmt.Sprintf("GOAL! %s curls in a free kick for %s!", who, teamName)
	case models.EventShotMissed:
		return fmt.Sprintf("%s shoots wide for %s", who, teamName)
	case models.EventCorner:
		return fmt.Sprintf("Corner for %s", teamName)
	case models.EventFoul:
		return fmt.Sprintf("Foul by %s (%s)", who, teamName)
	case models.EventYellowCard:
		return fmt.Sprintf("Yellow card for %s (%s)", who, teamName)
	case models.EventRedCard:
		return fmt.Sprintf("RED CARD! %s (%s) is sent off", who, teamName)
	case models.EventSubstitution:
		return fmt.Sprintf("Substitution for %s: %s comes off", teamName, who)
	case models.EventInjury:
		return fmt.Sprintf("%s (%s) is down injured", who, teamName)
	}
	return string(typ)
}
