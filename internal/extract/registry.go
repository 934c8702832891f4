package extract

import "fmt"

// ForSite returns the extractor profile for a configured site name.
func ForSite(name, baseURL, graphqlURL string) (Profile, error) {
	switch name {
	case "cymax":
		return NewCymax(), nil
	case "magento":
		return NewMagento(), nil
	case "shopify":
		return NewShopify(baseURL), nil
	case "graphql":
		if graphqlURL == "" {
			return nil, fmt.Errorf("site profile %q requires GRAPHQL_URL", name)
		}
		return NewGraphQL(graphqlURL), nil
	default:
		return nil, fmt.Errorf("unknown site profile %q", name)
	}
}
