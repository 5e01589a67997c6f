package ghWeb

import (
	"context"
	"net/http"

	"github.com/MrEthical07/ghWeb/binding"
)

// Hovercard is the profile summary the web UI shows when hovering a
// username.
type Hovercard struct {
	Login string `json:"login"`
	Bio   string `json:"bio"`
}

var hovercardShape = binding.Shape{
	"login": binding.KindString,
	"bio":   binding.KindString,
}

// HovercardBinding describes the hovercard endpoint. Exposed so tests
// and pipelines can drive it through Call directly.
var HovercardBinding = binding.Binding[Hovercard]{
	Name:            "user_hovercard",
	Method:          http.MethodGet,
	Path:            "/users/{username}/hovercard",
	RequiresSession: true,
	CSRF:            binding.CSRFNone,
	Shape:           hovercardShape,
	Parse:           binding.JSON[Hovercard](hovercardShape),
}

// GetUserHovercard fetches the hovercard for a username.
func (c *Client) GetUserHovercard(ctx context.Context, username string) (Hovercard, error) {
	return Call(ctx, c, HovercardBinding, binding.Params{"username": username})
}

// OrganizationUsage is the terms-of-service flavor an organization is
// created under.
type OrganizationUsage string

const (
	// OrgUsagePersonal creates under the standard terms.
	OrgUsagePersonal OrganizationUsage = "standard"
	// OrgUsageBusiness creates under the corporate terms and requires
	// a company name.
	OrgUsageBusiness OrganizationUsage = "corporate"
)

// CreateOrganizationInput carries the fields of the new-organization
// form. Only free-tier organizations are created.
type CreateOrganizationInput struct {
	Name         string
	BillingEmail string
	Usage        OrganizationUsage
	// CompanyName is required for OrgUsageBusiness.
	CompanyName string
}

const newOrganizationPath = "/account/organizations/new?plan=free"

// CreateOrganization creates an organization through the web UI form,
// the same way a browser submits the org-new-form page. There is no
// REST equivalent.
func (c *Client) CreateOrganization(ctx context.Context, input CreateOrganizationInput) error {
	if input.Usage == "" {
		input.Usage = OrgUsagePersonal
	}
	if input.Usage == OrgUsageBusiness && input.CompanyName == "" {
		return ErrCompanyNameRequired
	}

	fields := map[string]string{
		"organization[profile_name]":  input.Name,
		"organization[login]":         input.Name,
		"organization[billing_email]": input.BillingEmail,
		"terms_of_service_type":       string(input.Usage),
		"agreed_to_terms":             "yes",
	}
	if input.Usage == OrgUsageBusiness {
		fields["organization[company_name]"] = input.CompanyName
	}

	resp, err := c.SubmitForm(ctx, FormRequest{
		URL:    newOrganizationPath,
		FormID: "org-new-form",
		Fields: fields,
	})
	if err != nil {
		return err
	}
	if resp.Status < 200 || resp.Status > 299 {
		return &HTTPError{
			Status:   resp.Status,
			Endpoint: "create_organization",
			URL:      resp.URL,
			Body:     snippet(resp.Body, 256),
		}
	}
	return nil
}
