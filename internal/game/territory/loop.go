package territory

import (
	"sort"

	"github.com/seyoonp1/running/internal/game/hexgrid"
)

// LoopDetector 闭环检测与内部填充
// 在队伍已占领格子构成的邻接图上，从触发格子出发寻找闭环。
// 检测器本身无状态，可在房间会话内复用。
type LoopDetector struct {
	grid         hexgrid.Grid
	minCycleLen  int
	expandRadius int
	minNeighbors int
}

// NewLoopDetector 创建闭环检测器
func NewLoopDetector(grid hexgrid.Grid, minCycleLen, expandRadius, minNeighbors int) *LoopDetector {
	return &LoopDetector{
		grid:         grid,
		minCycleLen:  minCycleLen,
		expandRadius: expandRadius,
		minNeighbors: minNeighbors,
	}
}

// dfsFrame 显式DFS栈帧
type dfsFrame struct {
	cell      string
	prev      string
	neighbors []string
	next      int
}

// DetectLoop 从触发格子出发检测闭环
// owned 为本队当前占领的格子集合，trigger 必须在其中。
// 使用显式栈做迭代DFS枚举经过触发格子的简单环，返回节点数不少于
// minCycleLen（含收尾重复的触发格子）的最小闭环；不存在时返回nil。
// 回到DFS来路的直接前驱不构成闭环。
func (d *LoopDetector) DetectLoop(owned map[string]bool, trigger string) []string {
	if !owned[trigger] {
		return nil
	}

	var best []string

	onPath := map[string]bool{trigger: true}
	path := []string{trigger}
	stack := []*dfsFrame{{cell: trigger, neighbors: d.ownedNeighbors(trigger, owned)}}

	for len(stack) > 0 {
		fr := stack[len(stack)-1]

		// 已有更小闭环时不再加深
		if best != nil && len(path)+1 >= len(best) {
			fr.next = len(fr.neighbors)
		}

		if fr.next >= len(fr.neighbors) {
			stack = stack[:len(stack)-1]
			delete(onPath, fr.cell)
			path = path[:len(path)-1]
			continue
		}

		nb := fr.neighbors[fr.next]
		fr.next++

		if nb == fr.prev {
			continue
		}

		if nb == trigger {
			// 闭合成环，节点数含收尾的触发格子
			if len(path)+1 >= d.minCycleLen {
				cycle := make([]string, 0, len(path)+1)
				cycle = append(cycle, path...)
				cycle = append(cycle, trigger)
				if best == nil || len(cycle) < len(best) {
					best = cycle
				}
			}
			continue
		}

		if onPath[nb] {
			continue
		}

		onPath[nb] = true
		path = append(path, nb)
		stack = append(stack, &dfsFrame{
			cell:      nb,
			prev:      fr.cell,
			neighbors: d.ownedNeighbors(nb, owned),
		})
	}

	return best
}

// ownedNeighbors 取相邻且被本队占领的格子，排序保证结果确定
func (d *LoopDetector) ownedNeighbors(cell string, owned map[string]bool) []string {
	all := d.grid.Neighbors(cell, 1)
	out := make([]string, 0, len(all))
	for _, nb := range all {
		if owned[nb] {
			out = append(out, nb)
		}
	}
	sort.Strings(out)
	return out
}

// FillInterior 估算闭环包围的内部格子
// 候选集为环上各格子半径 expandRadius 内的扩展格子；候选格子需同时
// 满足：不在环上、未被任何队伍占领、中心落在环的经纬度包围盒内、
// 且六个邻居中至少 minNeighbors 个在环上。
// 这是一个近似启发式，对远离环的深层内部格子可能漏判，结果排序后返回。
func (d *LoopDetector) FillInterior(loop []string, isOwned func(cellID string) bool) []string {
	if len(loop) == 0 {
		return nil
	}

	onLoop := make(map[string]bool, len(loop))
	for _, c := range loop {
		onLoop[c] = true
	}

	minLat, maxLat, minLng, maxLng, ok := d.loopBounds(loop)
	if !ok {
		return nil
	}

	// 环周边扩展出候选集
	candidates := make(map[string]bool)
	for _, c := range loop {
		for _, nb := range d.grid.Neighbors(c, d.expandRadius) {
			if onLoop[nb] || candidates[nb] {
				continue
			}
			if isOwned(nb) {
				continue
			}
			lat, lng, err := d.grid.CellLatLng(nb)
			if err != nil {
				continue
			}
			if lat < minLat || lat > maxLat || lng < minLng || lng > maxLng {
				continue
			}
			candidates[nb] = true
		}
	}

	// 邻居支撑度过滤，只按环上格子计数
	out := make([]string, 0, len(candidates))
	for c := range candidates {
		support := 0
		for _, nb := range d.grid.Neighbors(c, 1) {
			if onLoop[nb] {
				support++
			}
		}
		if support >= d.minNeighbors {
			out = append(out, c)
		}
	}
	sort.Strings(out)
	return out
}

// loopBounds 计算环上格子中心点的经纬度包围盒
func (d *LoopDetector) loopBounds(loop []string) (minLat, maxLat, minLng, maxLng float64, ok bool) {
	first := true
	for _, c := range loop {
		lat, lng, err := d.grid.CellLatLng(c)
		if err != nil {
			continue
		}
		if first {
			minLat, maxLat, minLng, maxLng = lat, lat, lng, lng
			first = false
			continue
		}
		if lat < minLat {
			minLat = lat
		}
		if lat > maxLat {
			maxLat = lat
		}
		if lng < minLng {
			minLng = lng
		}
		if lng > maxLng {
			maxLng = lng
		}
	}
	return minLat, maxLat, minLng, maxLng, !first
}
