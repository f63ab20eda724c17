package application

import (
	"context"
	"net/http"
	"net/url"
	"testing"

	"sasapp-gateway/sasapp/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDashboard(up domain.Upstream) Dashboard {
	return Dashboard{
		Forwarder: Forwarder{Upstream: up},
		Required:  []string{"matricula", "empregador"},
		Sections: []DashboardSection{
			{Name: "saldo", Route: domain.Route{Name: "saldo", Script: "app/saldo.php"}},
			{Name: "extrato", Route: domain.Route{Name: "extrato", Script: "app/extrato.php"}},
			{Name: "antecipacoes", Route: domain.Route{Name: "ant", Script: "app/antecipacao_lista.php"}},
		},
	}
}

var dashFields = url.Values{"matricula": {"1"}, "empregador": {"2"}}

func TestDashboard_PartialFailureStillSucceeds(t *testing.T) {
	up := newFakeUpstream().
		on("app/saldo.php", 200, `{"saldo":"99,90"}`).
		on("app/extrato.php", 200, `{"status":"erro","message":"Sem movimento"}`).
		fail("app/antecipacao_lista.php", domain.KindTimeout)

	res, err := newTestDashboard(up).Resumo(context.Background(), dashFields)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.Code)

	sections, ok := res.Envelope.Data.(map[string]SectionResult)
	require.True(t, ok)
	assert.True(t, sections["saldo"].Ok)
	assert.Equal(t, map[string]any{"saldo": "99,90"}, sections["saldo"].Data)
	assert.False(t, sections["extrato"].Ok)
	assert.Equal(t, "Sem movimento", sections["extrato"].Erro)
	assert.False(t, sections["antecipacoes"].Ok)
	assert.NotEmpty(t, sections["antecipacoes"].Erro)
}

func TestDashboard_AllFailed(t *testing.T) {
	res, err := newTestDashboard(newFakeUpstream()).Resumo(context.Background(), dashFields)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadGateway, res.Code)
	assert.False(t, res.Envelope.Success)
	assert.Len(t, res.Envelope.Data, 3)
}

func TestDashboard_RequiresIdentity(t *testing.T) {
	_, err := newTestDashboard(newFakeUpstream()).Resumo(context.Background(), url.Values{"matricula": {"1"}})
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, []string{"empregador"}, ve.Missing)
}

func TestDashboard_CallsEverySection(t *testing.T) {
	up := newFakeUpstream().
		on("app/saldo.php", 200, `{}`).
		on("app/extrato.php", 200, `[]`).
		on("app/antecipacao_lista.php", 200, `[]`)

	_, err := newTestDashboard(up).Resumo(context.Background(), dashFields)
	require.NoError(t, err)
	for _, s := range []string{"app/saldo.php", "app/extrato.php", "app/antecipacao_lista.php"} {
		assert.Equal(t, 1, up.callCount(s), s)
	}
}
