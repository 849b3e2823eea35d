package quota

// Usage is the quota/usage shape common to accounts, tunnel assignments and
// user records.
type Usage struct {
	QuotaGB   int64
	InBytes   int64
	OutBytes  int64
	Direction Direction
}

func (u Usage) Unlimited() bool { return IsUnlimitedFlow(u.QuotaGB) }

func (u Usage) Used() int64 { return UsedBytes(u.InBytes, u.OutBytes, u.Direction) }

func (u Usage) Percentage() Percentage { return UsagePercentage(u.Used(), u.QuotaGB) }

func (u Usage) Total() string { return FormattedTotal(u.QuotaGB) }

func (u Usage) UsedText() string { return FormattedUsed(u.Used()) }

func (u Usage) Remaining() (int64, bool) { return Remaining(u.Used(), u.QuotaGB) }

func (u Usage) Exceeded() bool { return Exceeded(u.Used(), u.QuotaGB) }
