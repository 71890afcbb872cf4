package datacite

import (
	"strings"

	"github.com/lehigh-university-libraries/doiregistry/hub"
	"github.com/lehigh-university-libraries/doiregistry/mapping"
)

// kernelAdapter handles the parts of the schema that differ between
// DataCite kernel generations. Everything else is shared.
type kernelAdapter interface {
	// namespace is the xmlns written on output.
	namespace() string
	// schemaLocation is the xsi:schemaLocation written on output.
	schemaLocation() string
	decodeGeoPoint(p *xmlGeoPoint) *hub.GeoLocationPoint
	decodeGeoBox(b *xmlGeoBox) *hub.GeoLocationBox
	// decodeExtra reads elements only this generation defines.
	decodeExtra(res *xmlResource, m *hub.Metadata)
	// encode fills the generation-specific parts of res.
	encode(m *hub.Metadata, res *xmlResource, voc *mapping.Vocabulary) error
}

// kernels is the versioned adapter table, keyed by hub.KernelOf.
var kernels = map[string]kernelAdapter{
	hub.Kernel3: kernel3{},
	hub.Kernel4: kernel4{},
}

func adapterFor(schema string) (kernelAdapter, string, error) {
	k, err := hub.KernelOf(schema)
	if err != nil {
		return nil, "", err
	}
	return kernels[k], k, nil
}

// kernel3 reads the kernel-3 text forms of geo-locations. Writing kernel-3
// is no longer allowed.
type kernel3 struct{}

func (kernel3) namespace() string { return hub.NamespaceKernel3 }

func (kernel3) schemaLocation() string {
	return hub.NamespaceKernel3 + " http://schema.datacite.org/meta/kernel-3/metadata.xsd"
}

// decodeGeoPoint reads "lat lon".
func (kernel3) decodeGeoPoint(p *xmlGeoPoint) *hub.GeoLocationPoint {
	if p == nil {
		return nil
	}
	fields := strings.Fields(p.Text)
	if len(fields) != 2 {
		return kernel4{}.decodeGeoPoint(p)
	}
	return &hub.GeoLocationPoint{
		PointLatitude:  hub.DegreesFromText(fields[0]),
		PointLongitude: hub.DegreesFromText(fields[1]),
	}
}

// decodeGeoBox reads "south west north east".
func (kernel3) decodeGeoBox(b *xmlGeoBox) *hub.GeoLocationBox {
	if b == nil {
		return nil
	}
	fields := strings.Fields(b.Text)
	if len(fields) != 4 {
		return kernel4{}.decodeGeoBox(b)
	}
	return &hub.GeoLocationBox{
		SouthBoundLatitude: hub.DegreesFromText(fields[0]),
		WestBoundLongitude: hub.DegreesFromText(fields[1]),
		NorthBoundLatitude: hub.DegreesFromText(fields[2]),
		EastBoundLongitude: hub.DegreesFromText(fields[3]),
	}
}

func (kernel3) decodeExtra(*xmlResource, *hub.Metadata) {}

func (kernel3) encode(*hub.Metadata, *xmlResource, *mapping.Vocabulary) error {
	return &hub.UnsupportedSchemaError{Schema: hub.NamespaceKernel3}
}

// kernel4 covers kernel-4.0 through 4.7.
type kernel4 struct{}

func (kernel4) namespace() string { return hub.NamespaceKernel4 }

func (kernel4) schemaLocation() string {
	return hub.NamespaceKernel4 + " http://schema.datacite.org/meta/kernel-" + Version + "/metadata.xsd"
}

func (kernel4) decodeGeoPoint(p *xmlGeoPoint) *hub.GeoLocationPoint {
	if p == nil {
		return nil
	}
	return &hub.GeoLocationPoint{
		PointLongitude: hub.DegreesFromText(p.PointLongitude),
		PointLatitude:  hub.DegreesFromText(p.PointLatitude),
	}
}

func (kernel4) decodeGeoBox(b *xmlGeoBox) *hub.GeoLocationBox {
	if b == nil {
		return nil
	}
	return &hub.GeoLocationBox{
		WestBoundLongitude: hub.DegreesFromText(b.WestBoundLongitude),
		EastBoundLongitude: hub.DegreesFromText(b.EastBoundLongitude),
		SouthBoundLatitude: hub.DegreesFromText(b.SouthBoundLatitude),
		NorthBoundLatitude: hub.DegreesFromText(b.NorthBoundLatitude),
	}
}

func (kernel4) decodeExtra(res *xmlResource, m *hub.Metadata) {
	for _, item := range res.RelatedItems {
		m.RelatedItems = append(m.RelatedItems, relatedItemFromXML(item))
	}
}

func (kernel4) encode(m *hub.Metadata, res *xmlResource, voc *mapping.Vocabulary) error {
	if p, ok := m.Publisher.Structured(); ok {
		res.Publisher = &xmlPublisher{
			PublisherIdentifier:       p.PublisherIdentifier,
			PublisherIdentifierScheme: p.PublisherIdentifierScheme,
			SchemeURI:                 p.SchemeURI,
			Lang:                      p.Lang,
			Value:                     p.Name,
		}
	}

	// The legacy Funder contributor became fundingReference in kernel-4.
	var kept []xmlContributor
	for i, c := range m.Contributors {
		if !voc.LegacyContributorType(c.ContributorType) {
			kept = append(kept, res.Contributors[i])
			continue
		}
		ref := xmlFundingReference{FunderName: c.Name}
		for _, ni := range c.NameIdentifiers {
			ref.FunderIdentifier = &xmlFunderIdentifier{
				FunderIdentifierType: "Crossref Funder ID",
				Value:                ni.NameIdentifier,
			}
			break
		}
		res.FundingReferences = append(res.FundingReferences, ref)
	}
	res.Contributors = kept

	for _, g := range m.GeoLocations {
		res.GeoLocations = append(res.GeoLocations, geoLocationToXML(g))
	}
	for _, item := range m.RelatedItems {
		res.RelatedItems = append(res.RelatedItems, relatedItemToXML(item))
	}
	return nil
}

func geoPointToXML(p *hub.GeoLocationPoint) *xmlGeoPoint {
	if p == nil {
		return nil
	}
	return &xmlGeoPoint{
		PointLongitude: p.PointLongitude.String(),
		PointLatitude:  p.PointLatitude.String(),
	}
}

func geoLocationToXML(g hub.GeoLocation) xmlGeoLocation {
	out := xmlGeoLocation{
		GeoLocationPlace: g.GeoLocationPlace,
		GeoLocationPoint: geoPointToXML(g.GeoLocationPoint),
	}
	if b := g.GeoLocationBox; b != nil {
		out.GeoLocationBox = &xmlGeoBox{
			WestBoundLongitude: b.WestBoundLongitude.String(),
			EastBoundLongitude: b.EastBoundLongitude.String(),
			SouthBoundLatitude: b.SouthBoundLatitude.String(),
			NorthBoundLatitude: b.NorthBoundLatitude.String(),
		}
	}
	for _, poly := range g.GeoLocationPolygon {
		xp := xmlGeoPolygon{InPolygonPoint: geoPointToXML(poly.InPolygonPoint)}
		for i := range poly.PolygonPoints {
			xp.PolygonPoints = append(xp.PolygonPoints, *geoPointToXML(&poly.PolygonPoints[i]))
		}
		out.GeoLocationPolygon = append(out.GeoLocationPolygon, xp)
	}
	return out
}
