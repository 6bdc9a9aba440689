// Package domain models daily rainfall at monitored well locations and the
// failure-risk assessments derived from it.
//
// # Data Source
//
// Daily precipitation comes from the CHIRPS daily product
// (UCSB-CHG/CHIRPS/DAILY, band "precipitation", millimetres per day), sampled
// at each well's point geometry at a 5 km scale. CHIRPS is published with a
// latency of several weeks, so a short window ending today is often empty or
// only partially populated. Both cases have to be tolerated.
//
// # Well Catalog Conventions
//
// The catalog is a CSV export with one row per monitored well:
//
//	twp_id,name,coords
//	TWP-0042,Kanyama North,"(28.2754,-15.4137)"
//
// The coords column packs longitude first, then latitude, inside parentheses.
// Several rows can share a location; the first row seen for a coordinate pair
// is kept.
//
// # Missing Values
//
// A day with no value, or with a value the source could not express as a
// number, is missing. Missing is never zero: a rolling sum whose window
// touches a missing day is itself missing. Only the classifier substitutes
// zero, and only at its input boundary.
//
// # Rolling Window
//
// The rolling sum is positional over the fetched series, not calendar based:
// position i sums positions i-6..i. The first six positions have no value.
//
//	position  0  1  2  3  4  5  6  7
//	rainfall  1  1  1  1  1  1  1  1
//	rolling   -  -  -  -  -  -  7  7
//
// # Risk Tiers
//
// The classifier returns the probability of well failure. Tiers are assigned
// from the lower bound of each band:
//
//	p >= 0.75        High
//	0.5 <= p < 0.75  Medium
//	p < 0.5          Low
package domain
