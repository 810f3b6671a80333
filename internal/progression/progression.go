package progression

// XP award tuning. The streak bonus counts the streak as it stood before the
// completion being awarded, so the first practice day ever earns no bonus.
const (
	BaseXPVocabulary    = 50
	BaseXPPronunciation = 75
	BaseXPConversation  = 100

	PerfectBonus   = 20
	HighScoreBonus = 10
	FirstPassBonus = 15

	StreakBonusPerDay  = 5
	HighScoreThreshold = 90
	PerfectScore       = 100
)

// Snapshot is a learner's durable progression state.
type Snapshot struct {
	TotalXP       int
	CurrentStreak int
	LongestStreak int
	LastPractice  Date
}

// Completion describes one finished attempt being folded into the ledger.
type Completion struct {
	BaseXP    int
	Score     float64
	Passed    bool
	FirstPass bool
	Today     Date
}

// Award itemizes the XP granted for a completion.
type Award struct {
	XP             int
	Base           int
	PerfectBonus   int
	HighScoreBonus int
	FirstPassBonus int
	StreakBonus    int
	Streak         int
	LevelBefore    int
	LevelAfter     int
}

// LeveledUp reports whether the award crossed a level threshold.
func (a Award) LeveledUp() bool {
	return a.LevelAfter > a.LevelBefore
}

// Apply folds a completion into the snapshot and itemizes the award. Failed
// attempts earn nothing and leave the snapshot untouched. streakBonusDayCap
// bounds how many streak days count toward the bonus.
func Apply(snap Snapshot, c Completion, streakBonusDayCap int) (Snapshot, Award) {
	award := Award{
		LevelBefore: LevelForXP(snap.TotalXP),
		LevelAfter:  LevelForXP(snap.TotalXP),
		Streak:      snap.CurrentStreak,
	}
	if !c.Passed {
		return snap, award
	}

	priorStreak := 0
	newStreak := 1
	switch {
	case snap.LastPractice == c.Today:
		priorStreak = snap.CurrentStreak
		newStreak = snap.CurrentStreak
		if newStreak == 0 {
			newStreak = 1
		}
	case snap.LastPractice == c.Today.AddDays(-1):
		priorStreak = snap.CurrentStreak
		newStreak = snap.CurrentStreak + 1
	}

	award.Base = c.BaseXP
	switch {
	case c.Score >= PerfectScore:
		award.PerfectBonus = PerfectBonus
	case c.Score >= HighScoreThreshold:
		award.HighScoreBonus = HighScoreBonus
	}
	if c.FirstPass {
		award.FirstPassBonus = FirstPassBonus
	}
	if streakBonusDayCap > 0 && priorStreak > streakBonusDayCap {
		priorStreak = streakBonusDayCap
	}
	award.StreakBonus = StreakBonusPerDay * priorStreak
	award.XP = award.Base + award.PerfectBonus + award.HighScoreBonus + award.FirstPassBonus + award.StreakBonus

	snap.TotalXP += award.XP
	snap.CurrentStreak = newStreak
	if newStreak > snap.LongestStreak {
		snap.LongestStreak = newStreak
	}
	snap.LastPractice = c.Today

	award.Streak = newStreak
	award.LevelAfter = LevelForXP(snap.TotalXP)
	return snap, award
}

// XPForLevel returns the total XP at which the given level starts. Level 1
// starts at 0, level 2 at 100, level 3 at 300, level n at 50·n·(n−1).
func XPForLevel(level int) int {
	if level <= 1 {
		return 0
	}
	return 50 * level * (level - 1)
}

// LevelForXP derives the level for a total XP amount. Levels are never
// stored; they are always recomputed from XP.
func LevelForXP(xp int) int {
	level := 1
	for XPForLevel(level+1) <= xp {
		level++
	}
	return level
}

// XPToNextLevel returns how much XP remains until the next level.
func XPToNextLevel(xp int) int {
	return XPForLevel(LevelForXP(xp)+1) - xp
}
