// servidor-legado imita os scripts PHP do sistema legado para testes manuais
// do gateway: respostas com warnings antes do JSON, formatos variados e
// lentidão ocasional.
//
//	go run ./teste-validacao/servidor-legado
//	UPSTREAM_URL=http://localhost:8081 go run ./cmd/gateway serve
package main

import (
	"fmt"
	"math/rand/v2"
	"net/http"
	"os"
	"sync"
	"time"

	"sasapp-gateway/internal/logging"
)

const phpWarning = "<br />\n<b>Warning</b>:  Undefined array key \"origem\" in <b>/var/www/html/%s</b> on line <b>%d</b><br />\n"

type legado struct {
	mu         sync.Mutex
	documentos map[string]string
}

func main() {
	log := logging.New(logging.Config{Level: "debug", Format: "console"})
	addr := os.Getenv("LISTEN_ADDR")
	if addr == "" {
		addr = ":8081"
	}

	l := &legado{documentos: map[string]string{}}
	mux := http.NewServeMux()

	// associado
	mux.HandleFunc("/app/login.php", l.sujo(`{"success":true,"data":{"matricula":"1001","empregador":"12","nome":"Ana Souza"}}`))
	mux.HandleFunc("/app/saldo.php", l.sujo(`{"status":"sucesso","dados":{"saldo":"1.250,00","limite":"3.000,00"}}`))
	mux.HandleFunc("/app/extrato.php", l.lento(l.limpo(`[{"data":"2024-05-02","descricao":"Farmácia","valor":"45,90"}]`)))
	mux.HandleFunc("/app/antecipacao_grava.php", l.sujo(`{"success":true,"message":"Solicitação registrada"}`))
	mux.HandleFunc("/app/antecipacao_lista.php", l.limpo(`{"success":false,"message":"Nenhuma antecipação"}`))
	mux.HandleFunc("/app/agendamento_grava.php", l.limpo(""))
	mux.HandleFunc("/app/agendamento_lista.php", l.limpo(`[]`))
	mux.HandleFunc("/app/sascred_adesao.php", l.adesao)
	mux.HandleFunc("/app/sascred_status.php", l.status)

	// convênio
	mux.HandleFunc("/convenio/login.php", l.sujo(`{"success":true,"data":{"cod_convenio":77,"nome_fantasia":"Padaria Central","cnpj":"12.345.678/0001-90"}}`))
	mux.HandleFunc("/convenio/lancamentos.php", l.limpo(`{"lancamentos":[{"id":9,"valor":"30,00"}]}`))
	mux.HandleFunc("/convenio/venda_grava.php", l.sujo(`{"success":"1","mensagem":"Venda gravada"}`))
	mux.HandleFunc("/convenio/estorno.php", l.limpo(`{"erro":"Lançamento já estornado"}`))

	log.Info().Str("addr", addr).Msg("servidor legado de teste")
	if err := http.ListenAndServe(addr, logRequests(log, mux)); err != nil {
		log.Fatal().Err(err).Msg("erro ao subir o servidor")
	}
}

// sujo responde com um warning do PHP antes do JSON, como o legado faz.
func (l *legado) sujo(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseMultipartForm(8 << 20)
		w.Header().Set("Content-Type", "text/html; charset=UTF-8")
		fmt.Fprintf(w, phpWarning, r.URL.Path[1:], 10+rand.IntN(90))
		fmt.Fprint(w, body)
	}
}

func (l *legado) limpo(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseMultipartForm(8 << 20)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, body)
	}
}

// lento atrasa uma em cada quatro chamadas o bastante para estourar
// UPSTREAM_TIMEOUT baixo.
func (l *legado) lento(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if rand.IntN(4) == 0 {
			time.Sleep(3 * time.Second)
		}
		h(w, r)
	}
}

// adesao registra o documento como pendente; assina sozinho depois de 20s.
func (l *legado) adesao(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		http.Error(w, `{"success":false,"message":"envie multipart"}`, http.StatusBadRequest)
		return
	}
	token := fmt.Sprintf("doc-%d", time.Now().UnixNano())

	l.mu.Lock()
	l.documentos[token] = "pendente"
	l.mu.Unlock()

	time.AfterFunc(20*time.Second, func() {
		l.mu.Lock()
		l.documentos[token] = "assinado"
		l.mu.Unlock()
	})

	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"success":true,"data":{"token":%q,"arquivos":%d}}`, token, len(r.MultipartForm.File))
}

func (l *legado) status(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")

	l.mu.Lock()
	st, ok := l.documentos[token]
	l.mu.Unlock()
	if !ok {
		st = "pendente"
	}
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"data":{"status_assinatura":%q}}`, st)
}
