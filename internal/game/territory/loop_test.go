package territory

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"
)

// fakeGrid 轴坐标六边形网格的测试实现
// 格子名为 "q,r"，经纬度直接映射为坐标，邻接关系与真实六边形一致。
type fakeGrid struct{}

var axialDirections = [6][2]int{
	{1, 0}, {1, -1}, {0, -1}, {-1, 0}, {-1, 1}, {0, 1},
}

func cellName(q, r int) string {
	return fmt.Sprintf("%d,%d", q, r)
}

func parseCell(cell string) (q, r int, err error) {
	_, err = fmt.Sscanf(cell, "%d,%d", &q, &r)
	return q, r, err
}

func hexDistance(q1, r1, q2, r2 int) int {
	dq, dr := q1-q2, r1-r2
	abs := func(v int) int {
		if v < 0 {
			return -v
		}
		return v
	}
	return (abs(dq) + abs(dr) + abs(dq+dr)) / 2
}

func (g *fakeGrid) CellAt(lat, lng float64) (string, error) {
	return cellName(int(lat), int(lng)), nil
}

func (g *fakeGrid) CellLatLng(cell string) (float64, float64, error) {
	q, r, err := parseCell(cell)
	if err != nil {
		return 0, 0, err
	}
	return float64(q), float64(r), nil
}

func (g *fakeGrid) Neighbors(cell string, k int) []string {
	q, r, err := parseCell(cell)
	if err != nil {
		return nil
	}
	var out []string
	for dq := -k; dq <= k; dq++ {
		for dr := -k; dr <= k; dr++ {
			if dq == 0 && dr == 0 {
				continue
			}
			if hexDistance(q+dq, r+dr, q, r) <= k {
				out = append(out, cellName(q+dq, r+dr))
			}
		}
	}
	return out
}

// ringCells (0,0) 周围一圈的6个格子，依邻接顺序排列
func ringCells() []string {
	ring := make([]string, 0, 6)
	for _, d := range axialDirections {
		ring = append(ring, cellName(d[0], d[1]))
	}
	return ring
}

// LoopDetectorTestSuite 闭环检测测试套件
type LoopDetectorTestSuite struct {
	suite.Suite
	detector *LoopDetector
}

func (suite *LoopDetectorTestSuite) SetupTest() {
	suite.detector = NewLoopDetector(&fakeGrid{}, 4, 3, 3)
}

func ownedSet(cells []string) map[string]bool {
	owned := make(map[string]bool, len(cells))
	for _, c := range cells {
		owned[c] = true
	}
	return owned
}

func (suite *LoopDetectorTestSuite) TestNoLoopOnPath() {
	// 一条直线不构成闭环
	cells := []string{cellName(0, 0), cellName(1, 0), cellName(2, 0), cellName(3, 0)}
	loop := suite.detector.DetectLoop(ownedSet(cells), cellName(3, 0))
	suite.Nil(loop)
}

func (suite *LoopDetectorTestSuite) TestTwoCellsNoDegenerateLoop() {
	// 相邻两格之间不允许把来路边当作回边
	cells := []string{cellName(0, 0), cellName(1, 0)}
	loop := suite.detector.DetectLoop(ownedSet(cells), cellName(1, 0))
	suite.Nil(loop)
}

func (suite *LoopDetectorTestSuite) TestRingClosesLoop() {
	ring := ringCells()
	trigger := ring[len(ring)-1]

	loop := suite.detector.DetectLoop(ownedSet(ring), trigger)
	suite.NotNil(loop)
	// 6个格子的环，首尾都是触发格子
	suite.Len(loop, 7)
	suite.Equal(trigger, loop[0])
	suite.Equal(trigger, loop[len(loop)-1])
}

func (suite *LoopDetectorTestSuite) TestTriggerMustBeOwned() {
	ring := ringCells()
	loop := suite.detector.DetectLoop(ownedSet(ring), cellName(5, 5))
	suite.Nil(loop)
}

func (suite *LoopDetectorTestSuite) TestSmallestCyclePreferred() {
	// 三个两两相邻的格子构成最小闭环，同时它们也在大环上
	cells := append(ringCells(), cellName(0, 0))
	trigger := cellName(0, 0)

	loop := suite.detector.DetectLoop(ownedSet(cells), trigger)
	suite.NotNil(loop)
	// 取包含触发格子的最小环：3个不同格子加收尾
	suite.Len(loop, 4)
}

func (suite *LoopDetectorTestSuite) TestFillInteriorOfRing() {
	ring := ringCells()

	interior := suite.detector.FillInterior(ring, func(string) bool { return false })
	suite.Contains(interior, cellName(0, 0))
}

func (suite *LoopDetectorTestSuite) TestFillCountsOnlyRingNeighbors() {
	// 半径2的大环：环心与环不相邻，支撑度为0，不应被填充；
	// 紧贴环内侧的六格各有3个环上邻居，应被填充。
	var ring []string
	for q := -2; q <= 2; q++ {
		for r := -2; r <= 2; r++ {
			if hexDistance(q, r, 0, 0) == 2 {
				ring = append(ring, cellName(q, r))
			}
		}
	}
	suite.Len(ring, 12)

	interior := suite.detector.FillInterior(ring, func(string) bool { return false })

	suite.NotContains(interior, cellName(0, 0))
	suite.Len(interior, 6)
	for _, d := range axialDirections {
		suite.Contains(interior, cellName(d[0], d[1]))
	}
}

func (suite *LoopDetectorTestSuite) TestFillSkipsOwnedCells() {
	ring := ringCells()

	interior := suite.detector.FillInterior(ring, func(cell string) bool {
		return cell == cellName(0, 0)
	})
	suite.NotContains(interior, cellName(0, 0))
}

func (suite *LoopDetectorTestSuite) TestDeterministicOutput() {
	ring := ringCells()
	trigger := ring[len(ring)-1]
	owned := ownedSet(ring)

	first := suite.detector.DetectLoop(owned, trigger)
	second := suite.detector.DetectLoop(owned, trigger)
	suite.Equal(first, second)

	fillA := suite.detector.FillInterior(ring, func(string) bool { return false })
	fillB := suite.detector.FillInterior(ring, func(string) bool { return false })
	suite.Equal(fillA, fillB)
}

func TestLoopDetectorTestSuite(t *testing.T) {
	suite.Run(t, new(LoopDetectorTestSuite))
}
