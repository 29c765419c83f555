package crs

import (
	"fmt"
	"strconv"
)

const (
	wktWGS84  = `GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984",SPHEROID["WGS_1984",6378137.0,298.257223563]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]]`
	wktETRS89 = `GEOGCS["GCS_ETRS_1989",DATUM["D_ETRS_1989",SPHEROID["GRS_1980",6378137.0,298.257222101]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]]`
	wktRGF93  = `GEOGCS["GCS_RGF_1993",DATUM["D_RGF_1993",SPHEROID["GRS_1980",6378137.0,298.257222101]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]]`
)

type definition struct {
	name string
	wkt  string
}

var definitions = map[int]definition{
	4326:  {"WGS 84", wktWGS84},
	4258:  {"ETRS89", wktETRS89},
	3857:  {"WGS 84 / Pseudo-Mercator", `PROJCS["WGS_1984_Web_Mercator_Auxiliary_Sphere",` + wktWGS84 +
		`,PROJECTION["Mercator_Auxiliary_Sphere"],PARAMETER["False_Easting",0.0],PARAMETER["False_Northing",0.0],` +
		`PARAMETER["Central_Meridian",0.0],PARAMETER["Standard_Parallel_1",0.0],PARAMETER["Auxiliary_Sphere_Type",0.0],UNIT["Meter",1.0]]`},
	2154:  {"RGF93 / Lambert-93", lambertWKT("RGF_1993_Lambert_93", 700000, 6600000, 3, 49, 44, 46.5)},
	27700: {"OSGB36 / British National Grid", `PROJCS["British_National_Grid",GEOGCS["GCS_OSGB_1936",DATUM["D_OSGB_1936",` +
		`SPHEROID["Airy_1830",6377563.396,299.3249646]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]],` +
		`PROJECTION["Transverse_Mercator"],PARAMETER["False_Easting",400000.0],PARAMETER["False_Northing",-100000.0],` +
		`PARAMETER["Central_Meridian",-2.0],PARAMETER["Scale_Factor",0.9996012717],PARAMETER["Latitude_Of_Origin",49.0],UNIT["Meter",1.0]]`},
}

// describe returns the display name and .prj text of code. Codes without a
// known definition get a bare name and no WKT.
func describe(code int) (name, wkt string) {
	if d, ok := definitions[code]; ok {
		return d.name, d.wkt
	}
	switch {
	case code > 32600 && code <= 32660:
		return utm("WGS 84", "WGS_1984", wktWGS84, code-32600, false)
	case code > 32700 && code <= 32760:
		return utm("WGS 84", "WGS_1984", wktWGS84, code-32700, true)
	case code >= 25828 && code <= 25838:
		return utm("ETRS89", "ETRS_1989", wktETRS89, code-25800, false)
	case code >= 3942 && code <= 3950:
		// CC42..CC50: one conic per degree of latitude, parallels at lat +/- 0.75
		lat := float64(code - 3900)
		return fmt.Sprintf("RGF93 / CC%d", code-3900),
			lambertWKT(fmt.Sprintf("RGF93_CC%d", code-3900), 1700000, float64(code-3941)*1000000+200000, 3, lat-0.75, lat+0.75, lat)
	}
	return "EPSG:" + strconv.Itoa(code), ""
}

func utm(datum, esri, geogcs string, zone int, south bool) (string, string) {
	hemi, fn := "N", 0.0
	if south {
		hemi, fn = "S", 10000000
	}
	return fmt.Sprintf("%s / UTM zone %d%s", datum, zone, hemi),
		fmt.Sprintf(`PROJCS["%s_UTM_Zone_%d%s",%s,PROJECTION["Transverse_Mercator"],`+
			`PARAMETER["False_Easting",500000.0],PARAMETER["False_Northing",%.1f],`+
			`PARAMETER["Central_Meridian",%d.0],PARAMETER["Scale_Factor",0.9996],`+
			`PARAMETER["Latitude_Of_Origin",0.0],UNIT["Meter",1.0]]`,
			esri, zone, hemi, geogcs, fn, zone*6-183)
}

func lambertWKT(name string, x0, y0, lon0, sp1, sp2, lat0 float64) string {
	return fmt.Sprintf(`PROJCS["%s",%s,PROJECTION["Lambert_Conformal_Conic"],`+
		`PARAMETER["False_Easting",%.1f],PARAMETER["False_Northing",%.1f],PARAMETER["Central_Meridian",%g],`+
		`PARAMETER["Standard_Parallel_1",%g],PARAMETER["Standard_Parallel_2",%g],PARAMETER["Latitude_Of_Origin",%g],UNIT["Meter",1.0]]`,
		name, wktRGF93, x0, y0, lon0, sp1, sp2, lat0)
}
