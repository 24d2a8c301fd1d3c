package services

import (
	"fmt"
	"math/rand"
	"time"

	"matchsim-service/models"
)

// 常规阶段边界（分钟）
const (
	firstHalfEnd   = 45
	secondHalfEnd  = 90
	extraFirstEnd  = 105
	extraSecondEnd = 120

	// 点球大战常规轮次与骤死上限
	shootoutRounds    = 5
	shootoutMaxSudden = 20
)

// MatchClock 负责一个会话的模拟分钟推进和阶段切换。
// 所有方法都要求在会话锁内调用。
type MatchClock struct {
	// HalfTimeBreak 中场休息占用的真实时间
	HalfTimeBreak time.Duration

	// 每半场补时的抽取区间（分钟），开半场时抽一次，之后不变
	MinAdditional int
	MaxAdditional int
}

// NewMatchClock 创建时钟
func NewMatchClock(halfTimeBreak time.Duration, minAdditional, maxAdditional int) *MatchClock {
	if minAdditional < 0 {
		minAdditional = 0
	}
	if maxAdditional < minAdditional {
		maxAdditional = minAdditional
	}
	return &MatchClock{
		HalfTimeBreak: halfTimeBreak,
		MinAdditional: minAdditional,
		MaxAdditional: maxAdditional,
	}
}

// drawAdditional 抽取一个半场的补时分钟数。
// 半场进行中禁止重抽，否则已下发的状态会被推翻。
func (c *MatchClock) drawAdditional(rng *rand.Rand) int {
	if c.MaxAdditional == c.MinAdditional {
		return c.MinAdditional
	}
	return c.MinAdditional + rng.Intn(c.MaxAdditional-c.MinAdditional+1)
}

// Advance 推进一个模拟分钟。返回值表示本次 tick 是否打了一分钟比赛
// （中场等待和点球大战不算比赛分钟）。
func (c *MatchClock) Advance(st *sessionState, now time.Time) bool {
	switch st.phase {
	case models.PhasePreMatch, models.PhaseFinished:
		return false

	case models.PhaseHalfTime:
		// 中场按真实时间等待，到点后下半场从第 46 分钟开始，补时重新抽取
		if st.halfTimeStart == nil || now.Sub(*st.halfTimeStart) < c.HalfTimeBreak {
			return false
		}
		st.phase = models.PhaseSecondHalf
		st.minute = 46
		st.additionalTime = c.drawAdditional(st.rng)
		t := now
		st.secondHalfStart = &t
		st.appendMarker(models.EventKickOff, "Second half underway", now)
		return true

	case models.PhasePenalties:
		c.resolveShootout(st, now)
		return false
	}

	// 进行中的阶段：推进一分钟
	st.minute++
	return true
}

// CheckBoundary 检查当前分钟是否越过阶段边界并执行切换。
// 在事件生成之后调用，保证边界标记排在该分钟的比赛事件后面。
func (c *MatchClock) CheckBoundary(st *sessionState, now time.Time) {
	switch st.phase {
	case models.PhaseFirstHalf:
		if st.minute >= firstHalfEnd+st.additionalTime {
			st.phase = models.PhaseHalfTime
			if st.halfTimeStart == nil {
				t := now
				st.halfTimeStart = &t
			}
			st.appendMarker(models.EventHalfTime, "Half time", now)
		}

	case models.PhaseSecondHalf:
		if st.minute >= secondHalfEnd+st.additionalTime {
			if st.decisive && st.homeScore == st.awayScore {
				st.phase = models.PhaseExtraTimeFirst
				st.minute = secondHalfEnd
				st.additionalTime = 0
				st.appendMarker(models.EventKickOff, "Extra time first half", now)
				return
			}
			st.finish(now, "Full time")
		}

	case models.PhaseExtraTimeFirst:
		if st.minute >= extraFirstEnd {
			st.phase = models.PhaseExtraTimeSecond
			st.minute = extraFirstEnd
			st.appendMarker(models.EventKickOff, "Extra time second half", now)
		}

	case models.PhaseExtraTimeSecond:
		if st.minute >= extraSecondEnd {
			if st.decisive && st.homeScore == st.awayScore {
				st.phase = models.PhasePenalties
				st.appendMarker(models.EventKickOff, "Penalty shootout", now)
				return
			}
			st.finish(now, "Full time after extra time")
		}
	}
}

// resolveShootout 解算点球大战：常规五轮，平局后骤死，
// 骤死轮数到上限仍平则随机判给一方。
func (c *MatchClock) resolveShootout(st *sessionState, now time.Time) {
	rng := st.rng
	kick := func() bool { return rng.Float64() < 0.75 }

	for round := 0; round < shootoutRounds; round++ {
		if kick() {
			st.penaltyHome++
		}
		if kick() {
			st.penaltyAway++
		}
	}
	for round := 0; st.penaltyHome == st.penaltyAway && round < shootoutMaxSudden; round++ {
		if kick() {
			st.penaltyHome++
		}
		if kick() {
			st.penaltyAway++
		}
	}
	if st.penaltyHome == st.penaltyAway {
		if rng.Intn(2) == 0 {
			st.penaltyHome++
		} else {
			st.penaltyAway++
		}
	}

	st.finish(now, fmt.Sprintf("Full time, penalties %d-%d", st.penaltyHome, st.penaltyAway))
}
