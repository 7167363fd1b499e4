package dataset

// AdjustSlices raises every rendered value below total*minimum up to that
// floor so small pie slices stay visible. Other slices are not rescaled, so
// rendered proportions drift when several slices are raised; tooltips read
// DisplayValue and are unaffected. A zero total leaves the dataset as is.
func (d *Dataset) AdjustSlices(minimum float64) {
	floor := d.Total() * minimum
	if floor <= 0 {
		return
	}
	for i := range d.Points {
		if d.Points[i].Value < floor {
			d.Points[i].Value = floor
		}
	}
}
