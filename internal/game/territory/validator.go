package territory

import (
	"time"
)

// locationSample 一次定位采样
type locationSample struct {
	CellID string
	Lat    float64
	Lng    float64
	At     time.Time
}

// ClaimValidator 基于定位采样窗口的占领判定器
// 每个参与者持有独立实例，窗口绝不跨参与者或跨房间共享。
// 判定器只做决策，不触碰占领地图。
type ClaimValidator struct {
	minSamples int
	minDwell   time.Duration
	ttl        time.Duration

	samples   []locationSample
	lastTouch time.Time
}

// NewClaimValidator 创建占领判定器
func NewClaimValidator(minSamples int, minDwell, ttl time.Duration) *ClaimValidator {
	return &ClaimValidator{
		minSamples: minSamples,
		minDwell:   minDwell,
		ttl:        ttl,
		samples:    make([]locationSample, 0, minSamples+1),
	}
}

// AddSample 追加一次定位采样
// 窗口上限为 minSamples+1 条，超出时按FIFO淘汰最旧的。
func (v *ClaimValidator) AddSample(lat, lng float64, cellID string, at time.Time) {
	// 窗口长时间未使用则先过期清空
	if !v.lastTouch.IsZero() && at.Sub(v.lastTouch) > v.ttl {
		v.samples = v.samples[:0]
	}
	v.lastTouch = at

	v.samples = append(v.samples, locationSample{
		CellID: cellID,
		Lat:    lat,
		Lng:    lng,
		At:     at,
	})

	if len(v.samples) > v.minSamples+1 {
		v.samples = v.samples[1:]
	}
}

// CheckClaim 判定当前窗口是否构成一次有效占领
// 要求最近 minSamples 条采样全部落在同一格子，且首尾时间跨度不小于
// minDwell。任一条件不满足时返回空，窗口保持不变。
func (v *ClaimValidator) CheckClaim() (string, bool) {
	if len(v.samples) < v.minSamples {
		return "", false
	}

	recent := v.samples[len(v.samples)-v.minSamples:]
	cellID := recent[0].CellID
	for _, s := range recent[1:] {
		if s.CellID != cellID {
			return "", false
		}
	}

	span := recent[len(recent)-1].At.Sub(recent[0].At)
	if span < v.minDwell {
		return "", false
	}

	return cellID, true
}

// Clear 清空采样窗口
// 占领成功后和停止跑步记录时调用，下一次占领需要重新停留。
func (v *ClaimValidator) Clear() {
	v.samples = v.samples[:0]
}

// Len 返回当前窗口内采样数
func (v *ClaimValidator) Len() int {
	return len(v.samples)
}

// ExpiredSince 窗口是否自上次使用起已超过TTL
// 用于房间会话定期清理静默断线参与者的窗口内存。
func (v *ClaimValidator) ExpiredSince(now time.Time) bool {
	return len(v.samples) > 0 && !v.lastTouch.IsZero() && now.Sub(v.lastTouch) > v.ttl
}
