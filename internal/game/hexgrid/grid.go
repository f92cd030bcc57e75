package hexgrid

import (
	"fmt"

	"github.com/uber/h3-go/v4"
)

// Grid 六边形网格适配接口
// 格子ID在游戏逻辑中始终是不透明字符串，具体编码由实现决定。
type Grid interface {
	// CellAt 将经纬度换算为格子ID
	CellAt(lat, lng float64) (string, error)
	// CellLatLng 返回格子中心点经纬度
	CellLatLng(cell string) (lat, lng float64, err error)
	// Neighbors 返回k环内的相邻格子ID（不含自身）
	Neighbors(cell string, k int) []string
}

// H3Grid 基于H3索引的网格实现
type H3Grid struct {
	resolution int
}

// NewH3Grid 创建H3网格适配器
func NewH3Grid(resolution int) *H3Grid {
	return &H3Grid{resolution: resolution}
}

// Resolution 返回网格分辨率
func (g *H3Grid) Resolution() int {
	return g.resolution
}

// CellAt 将经纬度换算为格子ID
// 坐标无法解析时返回错误，调用方必须放弃本次占领判定。
func (g *H3Grid) CellAt(lat, lng float64) (string, error) {
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return "", fmt.Errorf("坐标超出范围: lat=%f lng=%f", lat, lng)
	}

	cell := h3.LatLngToCell(h3.NewLatLng(lat, lng), g.resolution)
	if !cell.IsValid() {
		return "", fmt.Errorf("无法解析格子: lat=%f lng=%f res=%d", lat, lng, g.resolution)
	}

	return cell.String(), nil
}

// CellLatLng 返回格子中心点经纬度
func (g *H3Grid) CellLatLng(cell string) (float64, float64, error) {
	c := h3.Cell(h3.IndexFromString(cell))
	if !c.IsValid() {
		return 0, 0, fmt.Errorf("无效的格子ID: %s", cell)
	}

	ll := h3.CellToLatLng(c)
	return ll.Lat, ll.Lng, nil
}

// Neighbors 返回k环内的相邻格子ID（不含自身）
// 格子ID无效时返回空列表。
func (g *H3Grid) Neighbors(cell string, k int) []string {
	c := h3.Cell(h3.IndexFromString(cell))
	if !c.IsValid() {
		return nil
	}

	disk := h3.GridDisk(c, k)
	neighbors := make([]string, 0, len(disk))
	for _, n := range disk {
		if n == c {
			continue
		}
		neighbors = append(neighbors, n.String())
	}
	return neighbors
}
