package ghWeb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateOrganizationSubmitsMergedForm(t *testing.T) {
	gh := newFakeGitHub()
	defer gh.Close()

	client, _ := newTestClient(t, gh, passwordCreds(), nil)
	defer client.Close()

	err := client.CreateOrganization(context.Background(), CreateOrganizationInput{
		Name:         "fishworks",
		BillingEmail: "billing@fishworks.dev",
	})
	require.NoError(t, err)

	gh.mu.Lock()
	posts := gh.orgPosts
	gh.mu.Unlock()
	require.Len(t, posts, 1)
	posted := posts[0]

	// Scraped hidden inputs survive the merge.
	assert.Equal(t, "tok-org", posted["authenticity_token"])
	assert.Equal(t, "free", posted["organization[plan]"])

	// Caller fields overwrite scraped ones and add the rest.
	assert.Equal(t, "fishworks", posted["organization[login]"])
	assert.Equal(t, "fishworks", posted["organization[profile_name]"])
	assert.Equal(t, "billing@fishworks.dev", posted["organization[billing_email]"])
	assert.Equal(t, "standard", posted["terms_of_service_type"])
	assert.Equal(t, "yes", posted["agreed_to_terms"])
	assert.NotContains(t, posted, "organization[company_name]")
	assert.NotContains(t, posted, "q", "inputs from other forms are not submitted")
}

func TestCreateOrganizationBusinessTerms(t *testing.T) {
	gh := newFakeGitHub()
	defer gh.Close()

	client, _ := newTestClient(t, gh, passwordCreds(), nil)
	defer client.Close()

	err := client.CreateOrganization(context.Background(), CreateOrganizationInput{
		Name:         "fishworks",
		BillingEmail: "billing@fishworks.dev",
		Usage:        OrgUsageBusiness,
		CompanyName:  "Fishworks GmbH",
	})
	require.NoError(t, err)

	gh.mu.Lock()
	posted := gh.orgPosts[0]
	gh.mu.Unlock()
	assert.Equal(t, "corporate", posted["terms_of_service_type"])
	assert.Equal(t, "Fishworks GmbH", posted["organization[company_name]"])
}

func TestCreateOrganizationRequiresCompanyName(t *testing.T) {
	gh := newFakeGitHub()
	defer gh.Close()

	client, _ := newTestClient(t, gh, passwordCreds(), nil)
	defer client.Close()

	err := client.CreateOrganization(context.Background(), CreateOrganizationInput{
		Name:         "fishworks",
		BillingEmail: "billing@fishworks.dev",
		Usage:        OrgUsageBusiness,
	})
	assert.ErrorIs(t, err, ErrCompanyNameRequired)

	loginPosts, _, _ := gh.counters()
	assert.Equal(t, 0, loginPosts, "validation runs before any exchange")
}

func TestSubmitFormMissingForm(t *testing.T) {
	gh := newFakeGitHub()
	defer gh.Close()

	client, _ := newTestClient(t, gh, passwordCreds(), nil)
	defer client.Close()

	_, err := client.SubmitForm(context.Background(), FormRequest{
		URL:    "/account/organizations/new?plan=free",
		FormID: "no-such-form",
	})
	assert.ErrorIs(t, err, ErrFormNotFound)
}

func TestSubmitFormResolvesRelativeURL(t *testing.T) {
	gh := newFakeGitHub()
	defer gh.Close()

	client, _ := newTestClient(t, gh, passwordCreds(), nil)
	defer client.Close()

	resp, err := client.SubmitForm(context.Background(), FormRequest{
		URL:    "/account/organizations/new?plan=free",
		FormID: "org-new-form",
		Fields: map[string]string{"organization[login]": "rel"},
	})
	require.NoError(t, err)
	assert.Equal(t, 200, resp.Status)

	gh.mu.Lock()
	posted := gh.orgPosts[len(gh.orgPosts)-1]
	gh.mu.Unlock()
	assert.Equal(t, "rel", posted["organization[login]"])
}
