package engine

type economicsInput struct {
	risk            float64
	yieldScore      float64
	yieldMultiplier float64
	defaultLoss     float64
	salePrice       float64
	costPerHa       float64
	area            float64
}

type economics struct {
	totalCost    float64
	grossYield   float64
	lossFraction float64
	revenue      float64
	profit       float64
	roi          float64
}

func computeEconomics(in economicsInput) economics {
	var out economics
	out.totalCost = in.costPerHa * in.area
	out.grossYield = in.yieldScore * in.yieldMultiplier * in.area
	out.lossFraction = LossFraction(in.risk, in.defaultLoss)
	out.revenue = out.grossYield * (1 - out.lossFraction) * in.salePrice
	out.profit = out.revenue - out.totalCost
	out.roi = ROI(out.profit, out.totalCost)
	return out
}

// ROI returns profit as a percentage of cost, or exactly 0 when cost is not
// positive.
func ROI(profit, cost float64) float64 {
	if cost <= 0 {
		return 0
	}
	return profit / cost * 100
}
