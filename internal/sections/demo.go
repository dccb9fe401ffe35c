package sections

import "github.com/fyrsmithlabs/memoforge/internal/llm"

// DemoPlan is the progression the static provider answers with.
const DemoPlan = `{"progression":{
  "hook":{"titre":"Et si vous l'expliquiez à un enfant ?","type":"question","angle":"curiosité","keywords":["simplicité","exemple"]},
  "story":{"titre":"La première fois","type":"récit","focus":"découverte"},
  "concepts":[
    {"titre":"L'idée centrale","type":"définition","focus":"ce que c'est","keywords":["définition"],"example":{"type":"analogie","description":"une recette de cuisine"}},
    {"titre":"Pourquoi ça marche","type":"principe","focus":"mécanisme","keywords":["cause","effet"],"example":{"type":"cas","description":"un exemple du quotidien"}}
  ],
  "technique":{"titre":"Expliquer en trois phrases","type":"méthode","approach":"reformulation"},
  "workshop":{"titre":"Mini-exposé","type":"exercice","duree":"20 minutes"}
}}`

// DemoRules are canned replies for offline runs. Rules are matched in order
// against the system prompt.
func DemoRules() []llm.Rule {
	return []llm.Rule{
		{Match: "progression", Reply: DemoPlan},
		{Match: "objectif", Reply: `{"titre":"Objectif","contenu":"À la fin de ce mémo, vous saurez expliquer le sujet avec vos mots et l'appliquer à un cas concret."}`},
		{Match: "accroche", Reply: `{"titre":"Et si vous l'expliquiez à un enfant ?","contenu":"Tout ce que l'on comprend vraiment peut s'expliquer simplement. Essayons."}`},
		{Match: "histoire", Reply: "```json\n" + `{"titre":"La première fois","contenu":"Le jour où Léa a dû présenter ce sujet, elle a tout repris depuis le début, une idée à la fois."}` + "\n```"},
		{Match: "concept", Reply: `Voici : {"titre":"Une idée clé","contenu":"Chaque notion repose sur une idée simple que l'on peut illustrer par un exemple du quotidien."}`},
		{Match: "technique", Reply: `{"titre":"Expliquer en trois phrases","contenu":"Résumez le sujet en trois phrases : ce que c'est, pourquoi c'est utile, comment s'en servir."}`},
		{Match: "atelier", Reply: `{"titre":"Mini-exposé","contenu":"Préparez un exposé de deux minutes sur le sujet et présentez-le à quelqu'un.","duree":"20 minutes"}`},
	}
}
